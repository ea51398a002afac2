// Package account defines the per-owner balance record and its store.
package account

import (
	"time"

	"github.com/xraph/treasury/types"
)

// Balance names one of the four balances an Account carries.
type Balance string

const (
	BalanceToken     Balance = "token"
	BalanceStack     Balance = "stack"
	BalanceCredit    Balance = "credit"
	BalanceUnclaimed Balance = "unclaimed"
)

// Account holds the balances of a single owner. Balances are unsigned, so a
// stored Account can never be negative; operations that would underflow are
// rejected before anything is written.
type Account struct {
	types.Entity
	OwnerID          string       `json:"owner_id"`
	Symbol           string       `json:"symbol,omitempty"`
	TokenBalance     types.Amount `json:"token_balance"`
	StackBalance     types.Amount `json:"stack_balance"`
	CreditBalance    types.Amount `json:"credit_balance"`
	UnclaimedBalance types.Amount `json:"unclaimed_balance"`

	// LastClaimTime is seconds since the epoch of the latest claim and
	// LastClaimTimestamp the same instant in nanoseconds.
	LastClaimTime      uint64       `json:"last_claim_time"`
	LastClaimAmount    types.Amount `json:"last_claim_amount"`
	LastClaimTimestamp uint64       `json:"last_claim_timestamp"`

	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// New returns an empty account for owner.
func New(owner string, now time.Time) *Account {
	return &Account{
		Entity:  types.NewEntity(now),
		OwnerID: owner,
	}
}

// Get returns the named balance.
func (a *Account) Get(b Balance) types.Amount {
	switch b {
	case BalanceToken:
		return a.TokenBalance
	case BalanceStack:
		return a.StackBalance
	case BalanceCredit:
		return a.CreditBalance
	case BalanceUnclaimed:
		return a.UnclaimedBalance
	default:
		return types.ZeroAmount
	}
}

// Set replaces the named balance.
func (a *Account) Set(b Balance, v types.Amount) {
	switch b {
	case BalanceToken:
		a.TokenBalance = v
	case BalanceStack:
		a.StackBalance = v
	case BalanceCredit:
		a.CreditBalance = v
	case BalanceUnclaimed:
		a.UnclaimedBalance = v
	}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	c := *a
	if a.DeletedAt != nil {
		t := *a.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// IsDeleted reports whether the account has been soft deleted.
func (a *Account) IsDeleted() bool { return a.DeletedAt != nil }
