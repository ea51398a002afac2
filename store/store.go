// Package store defines the storage contract shared by every treasury backend.
package store

import (
	"context"

	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/trace"
)

// Store combines the account records and the audit trail behind one handle.
// Backends live in the sub-packages: memory, sqlite, postgres, mongo, redis.
type Store interface {
	account.Store
	trace.Store

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
