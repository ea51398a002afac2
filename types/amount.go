// Package types holds the value types shared by treasury records.
package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Amount is a non-negative integer quantity of the smallest token unit.
// It is backed by a 256-bit unsigned integer, so balances at currency scale
// never overflow silently: Add and Sub report overflow instead of wrapping.
//
// Amounts travel as decimal strings in text, JSON and SQL so no precision is
// lost between backends.
//
//nolint:recvcheck // Value receivers for arithmetic, pointer receivers for decoding.
type Amount struct {
	v uint256.Int
}

// ZeroAmount is the zero value, spelled out for readability at call sites.
var ZeroAmount Amount

// NewAmount returns an Amount holding n.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// ParseAmount parses a base-10 string. Signs, hex and fractions are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroAmount, fmt.Errorf("amount: parse %q: empty string", s)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return ZeroAmount, fmt.Errorf("amount: parse %q: %w", s, err)
	}
	return Amount{v: *v}, nil
}

// MustParseAmount is like ParseAmount but panics on error. Use for literals.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// LenientAmount parses s and returns zero for anything unparseable.
// Analytics read legacy string inputs through it.
func LenientAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		return ZeroAmount
	}
	return a
}

// Add returns a+b and whether the sum overflowed.
func (a Amount) Add(b Amount) (Amount, bool) {
	var out Amount
	_, overflow := out.v.AddOverflow(&a.v, &b.v)
	return out, overflow
}

// Sub returns a-b and whether the result underflowed (b > a).
func (a Amount) Sub(b Amount) (Amount, bool) {
	var out Amount
	_, underflow := out.v.SubOverflow(&a.v, &b.v)
	return out, underflow
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// LessThan reports a < b.
func (a Amount) LessThan(b Amount) bool { return a.v.Lt(&b.v) }

// Equal reports a == b.
func (a Amount) Equal(b Amount) bool { return a.v.Eq(&b.v) }

// IsZero reports whether a is zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Float64 returns the nearest float64. Used only by statistics.
func (a Amount) Float64() float64 { return a.v.Float64() }

// String returns the decimal representation.
func (a Amount) String() string { return a.v.Dec() }

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Only decimal is accepted.
func (a *Amount) UnmarshalText(data []byte) error {
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.Dec())
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*a = ZeroAmount
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
	}
	return a.UnmarshalText([]byte(s))
}

// Value implements driver.Valuer. Amounts are stored as decimal TEXT.
func (a Amount) Value() (driver.Value, error) {
	return a.v.Dec(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = ZeroAmount
		return nil
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("amount: cannot scan negative %d", v)
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T into Amount", src)
	}
}

// SumAmounts adds every amount and reports whether the total overflowed.
func SumAmounts(amounts ...Amount) (Amount, bool) {
	total := ZeroAmount
	for _, a := range amounts {
		var overflow bool
		total, overflow = total.Add(a)
		if overflow {
			return ZeroAmount, true
		}
	}
	return total, false
}
