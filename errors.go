package treasury

import (
	"errors"
	"fmt"
)

// Sentinel errors. Backends wrap them with %w, so match with errors.Is.
var (
	// Validation
	ErrInvalidAmount       = errors.New("treasury: invalid amount")
	ErrInsufficientBalance = errors.New("treasury: insufficient balance")
	ErrInvalidInput        = errors.New("treasury: invalid input")
	ErrEmptyBatch          = fmt.Errorf("%w: empty batch", ErrInvalidInput)
	ErrAmountOverflow      = fmt.Errorf("%w: overflow", ErrInvalidAmount)

	// Accounts
	ErrAccountNotFound = errors.New("treasury: account not found")
	ErrAccountDeleted  = errors.New("treasury: account is deleted")

	// Traces
	ErrTraceNotFound    = errors.New("treasury: trace not found")
	ErrDuplicateTraceID = errors.New("treasury: duplicate trace id")

	// Side effects
	ErrPersistence  = errors.New("treasury: persistence failure")
	ErrExternalCall = errors.New("treasury: external call failed")

	// Engine
	ErrNotStarted = errors.New("treasury: engine not started")
	ErrStopped    = errors.New("treasury: engine stopped")
)

// ValidationError describes a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("treasury: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap makes every ValidationError match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError collects independent errors, e.g. from a reconciliation pass.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "treasury: no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("treasury: %d errors occurred", len(e.Errors))
	}
}

// Add appends err if it is not nil.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors reports whether any error was added.
func (e MultiError) HasErrors() bool { return len(e.Errors) > 0 }

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrOrNil returns e when it holds errors, nil otherwise.
func (e MultiError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// IsNotFound reports whether err is a missing account or trace.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrTraceNotFound)
}

// IsRejected reports whether err is a validation rejection, meaning no state
// was touched and no trace was written.
func IsRejected(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrAccountDeleted) ||
		errors.Is(err, ErrDuplicateTraceID)
}

// IsRetryable reports whether the operation may succeed if repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrExternalCall)
}
