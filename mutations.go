package treasury

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/id"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// MutationOptions carries caller-supplied trace attributes.
type MutationOptions struct {
	// TraceID overrides the generated "{owner}-{operation}-{stamp}" id.
	// Reusing an existing id fails with ErrDuplicateTraceID.
	TraceID string
	// ContextID groups related traces. Defaults to a random UUID.
	ContextID string
}

// MutationOption configures a single mutation.
type MutationOption func(*MutationOptions)

// WithTraceID sets an explicit trace id.
func WithTraceID(traceID string) MutationOption {
	return func(o *MutationOptions) { o.TraceID = traceID }
}

// WithContextID sets the trace context id.
func WithContextID(contextID string) MutationOption {
	return func(o *MutationOptions) { o.ContextID = contextID }
}

func buildMutationOptions(opts []MutationOption) MutationOptions {
	var mo MutationOptions
	for _, opt := range opts {
		opt(&mo)
	}
	if mo.ContextID == "" {
		mo.ContextID = uuid.NewString()
	}
	return mo
}

// transition describes the balance movement of an operation. Either side may
// be empty: a credit-only operation mints, a debit-only operation burns
// locally (transfers settle the other side externally).
type transition struct {
	debit  account.Balance
	credit account.Balance
}

var transitions = map[trace.Operation]transition{
	trace.OpStack:        {debit: account.BalanceToken, credit: account.BalanceStack},
	trace.OpUnstack:      {debit: account.BalanceStack, credit: account.BalanceToken},
	trace.OpAddCredit:    {credit: account.BalanceCredit},
	trace.OpUseCredit:    {debit: account.BalanceCredit},
	trace.OpAddUnclaimed: {credit: account.BalanceUnclaimed},
	trace.OpClaim:        {debit: account.BalanceUnclaimed, credit: account.BalanceToken},
	trace.OpAddToken:     {credit: account.BalanceToken},
	trace.OpTransfer:     {debit: account.BalanceToken},
}

// apply validates op against cur and returns the resulting account. cur is
// never modified.
func apply(cur *account.Account, op trace.Operation, amount types.Amount) (*account.Account, error) {
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	tr, ok := transitions[op]
	if !ok {
		return nil, ValidationError{Field: "operation", Message: fmt.Sprintf("unknown operation %q", op)}
	}

	next := cur.Clone()
	if tr.debit != "" {
		have := next.Get(tr.debit)
		left, underflow := have.Sub(amount)
		if underflow {
			return nil, fmt.Errorf("%w: %s balance %s is less than %s", ErrInsufficientBalance, tr.debit, have, amount)
		}
		next.Set(tr.debit, left)
	}
	if tr.credit != "" {
		sum, overflow := next.Get(tr.credit).Add(amount)
		if overflow {
			return nil, fmt.Errorf("%w: %s balance", ErrAmountOverflow, tr.credit)
		}
		next.Set(tr.credit, sum)
	}
	return next, nil
}

// ──────────────────────────────────────────────────
// Balance operations
// ──────────────────────────────────────────────────

// Stack moves amount from the token balance to the stack balance.
func (t *Treasury) Stack(ctx context.Context, owner string, amount types.Amount, opts ...MutationOption) (*account.Account, *trace.Trace, error) {
	return t.mutate(ctx, owner, trace.OpStack, amount, opts)
}

// Unstack moves amount from the stack balance back to the token balance.
func (t *Treasury) Unstack(ctx context.Context, owner string, amount types.Amount, opts ...MutationOption) (*account.Account, *trace.Trace, error) {
	return t.mutate(ctx, owner, trace.OpUnstack, amount, opts)
}

// AddCredit grants amount of credit.
func (t *Treasury) AddCredit(ctx context.Context, owner string, amount types.Amount, opts ...MutationOption) (*account.Account, *trace.Trace, error) {
	return t.mutate(ctx, owner, trace.OpAddCredit, amount, opts)
}

// UseCredit spends amount of credit.
func (t *Treasury) UseCredit(ctx context.Context, owner string, amount types.Amount, opts ...MutationOption) (*account.Account, *trace.Trace, error) {
	return t.mutate(ctx, owner, trace.OpUseCredit, amount, opts)
}

// AddUnclaimed adds amount to the unclaimed balance.
func (t *Treasury) AddUnclaimed(ctx context.Context, owner string, amount types.Amount, opts ...MutationOption) (*account.Account, *trace.Trace, error) {
	return t.mutate(ctx, owner, trace.OpAddUnclaimed, amount, opts)
}

// Claim moves amount from the unclaimed balance to the token balance and
// records it as the owner's latest claim.
func (t *Treasury) Claim(ctx context.Context, owner string, amount types.Amount, opts ...MutationOption) (*account.Account, *trace.Trace, error) {
	return t.mutate(ctx, owner, trace.OpClaim, amount, opts)
}

// AddTokenBalance adds amount to the token balance.
func (t *Treasury) AddTokenBalance(ctx context.Context, owner string, amount types.Amount, opts ...MutationOption) (*account.Account, *trace.Trace, error) {
	return t.mutate(ctx, owner, trace.OpAddToken, amount, opts)
}

// Apply dispatches a local balance operation by name. Transfers need a
// recipient and go through Transfer instead.
func (t *Treasury) Apply(ctx context.Context, owner string, op trace.Operation, amount types.Amount, opts ...MutationOption) (*account.Account, *trace.Trace, error) {
	if op == trace.OpTransfer || op == trace.OpBatchTransfer {
		return nil, nil, ValidationError{Field: "operation", Message: fmt.Sprintf("%s requires recipients", op)}
	}
	return t.mutate(ctx, owner, op, amount, opts)
}

// mutate runs a local (non-transfer) operation:
//  1. validate against the current account; rejections write nothing
//  2. append the trace as Pending
//  3. persist the new account, removing the trace again if that fails
//  4. flip the trace to Completed
func (t *Treasury) mutate(ctx context.Context, owner string, op trace.Operation, amount types.Amount, opts []MutationOption) (*account.Account, *trace.Trace, error) {
	if owner == "" {
		return nil, nil, ValidationError{Field: "owner", Message: "must not be empty"}
	}
	mo := buildMutationOptions(opts)

	unlock := t.locks.lock(owner)
	defer unlock()

	cur, opened, err := t.loadForUpdate(ctx, owner)
	if err != nil {
		t.reject(ctx, owner, op, amount, err)
		return nil, nil, err
	}

	next, err := apply(cur, op, amount)
	if err != nil {
		t.reject(ctx, owner, op, amount, err)
		return nil, nil, err
	}

	now := t.now()
	next.Touch(now)
	if op == trace.OpClaim {
		next.LastClaimAmount = amount
		next.LastClaimTime = uint64(now.Unix())
		next.LastClaimTimestamp = uint64(now.UnixNano())
	}

	tr := t.newTrace(owner, op, amount, "", mo)
	if err := t.begin(ctx, tr, next); err != nil {
		if errors.Is(err, ErrDuplicateTraceID) {
			t.reject(ctx, owner, op, amount, err)
		}
		return nil, nil, err
	}
	t.finish(ctx, tr, trace.StatusCompleted, "")

	if opened {
		t.plugins.EmitAccountOpened(ctx, next)
	}
	t.plugins.EmitMutationApplied(ctx, next, tr)

	return next, tr, nil
}

// loadForUpdate returns the owner's account, or a fresh one if none exists.
// The caller holds the owner's write lock.
func (t *Treasury) loadForUpdate(ctx context.Context, owner string) (*account.Account, bool, error) {
	a, err := t.store.GetAccount(ctx, owner)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return account.New(owner, t.now()), true, nil
	case err != nil:
		return nil, false, fmt.Errorf("%w: load account: %w", ErrPersistence, err)
	case a.IsDeleted():
		return nil, false, fmt.Errorf("%w: %s", ErrAccountDeleted, owner)
	}
	return a, false, nil
}

func (t *Treasury) reject(ctx context.Context, owner string, op trace.Operation, amount types.Amount, err error) {
	if !IsRejected(err) {
		return
	}
	t.logger.Debug("mutation rejected",
		"owner", owner,
		"operation", op,
		"amount", amount.String(),
		"error", err,
	)
	t.plugins.EmitMutationRejected(ctx, owner, op, amount, err)
}

// newTrace builds a Pending trace with a single call for op.
func (t *Treasury) newTrace(owner string, op trace.Operation, amount types.Amount, recipient string, mo MutationOptions) *trace.Trace {
	traceID := mo.TraceID
	if traceID == "" {
		traceID = fmt.Sprintf("%s-%s-%d", owner, op, t.stamp())
	}

	inputs := []trace.IOData{{DataType: trace.DataAmount, Value: amount.String()}}
	if recipient != "" {
		inputs = append(inputs, trace.IOData{DataType: trace.DataRecipient, Value: recipient})
	}

	return &trace.Trace{
		Entity:    types.NewEntity(t.now()),
		ID:        traceID,
		ContextID: mo.ContextID,
		Owner:     owner,
		Calls: []trace.Call{{
			ID:        id.NewCallID(),
			Protocol:  trace.Protocol,
			Agent:     owner,
			Method:    op,
			Inputs:    inputs,
			Outputs:   []trace.IOData{},
			Status:    trace.StatusPending,
			Amount:    amount,
			Recipient: recipient,
		}},
	}
}

// begin appends tr as Pending and persists next. If the account write fails
// the trace is removed so neither record reflects the operation.
func (t *Treasury) begin(ctx context.Context, tr *trace.Trace, next *account.Account) error {
	if err := t.store.AppendTrace(ctx, tr); err != nil {
		if errors.Is(err, ErrDuplicateTraceID) {
			return err
		}
		return fmt.Errorf("%w: append trace: %w", ErrPersistence, err)
	}

	if err := t.store.PutAccount(ctx, next); err != nil {
		if rmErr := t.store.RemoveTrace(ctx, tr.ID); rmErr != nil {
			t.logger.Error("failed to remove trace after account write failure",
				"owner", tr.Owner,
				"trace_id", tr.ID,
				"error", rmErr,
			)
		}
		return fmt.Errorf("%w: put account: %w", ErrPersistence, err)
	}
	return nil
}

// finish moves tr to its terminal status. A failed write leaves the stored
// trace Pending; the reconciler reports it.
func (t *Treasury) finish(ctx context.Context, tr *trace.Trace, status trace.Status, metadata string) {
	tr.SetStatus(status)
	if metadata != "" {
		tr.Metadata = metadata
	}
	tr.Touch(t.now())

	if err := t.store.UpdateTrace(ctx, tr); err != nil {
		tr.SetStatus(trace.StatusPending)
		t.logger.Warn("trace left pending",
			"owner", tr.Owner,
			"trace_id", tr.ID,
			"status", status,
			"error", err,
		)
	}
}

// failureMetadata formats the metadata of a Failed trace.
func failureMetadata(err error) string {
	return "error: " + err.Error()
}
