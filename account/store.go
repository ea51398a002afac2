package account

import (
	"context"
	"time"
)

// Store persists accounts keyed by owner id.
type Store interface {
	// GetAccount returns the account for owner, including soft-deleted ones.
	GetAccount(ctx context.Context, owner string) (*Account, error)
	// PutAccount inserts or replaces the account.
	PutAccount(ctx context.Context, a *Account) error
	// DeleteAccount marks the account deleted. Records are never removed.
	DeleteAccount(ctx context.Context, owner string, at time.Time) error
	ListAccounts(ctx context.Context, opts ListOpts) ([]*Account, error)
	CountAccounts(ctx context.Context) (int64, error)
}

// ListOpts paginates ListAccounts. Results are ordered by owner id.
// A zero Limit means no limit.
type ListOpts struct {
	Offset         int
	Limit          int
	IncludeDeleted bool
}
