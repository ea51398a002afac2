// Package plugin defines the hooks treasury exposes to extensions.
// A plugin implements Plugin plus any subset of the hook interfaces; the
// Registry discovers which at registration time.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called once when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountOpened is called after an account is first persisted.
type OnAccountOpened interface {
	Plugin
	OnAccountOpened(ctx context.Context, a *account.Account) error
}

// OnAccountDeleted is called after an account is soft deleted.
type OnAccountDeleted interface {
	Plugin
	OnAccountDeleted(ctx context.Context, owner string) error
}

// ──────────────────────────────────────────────────
// Mutation hooks
// ──────────────────────────────────────────────────

// OnMutationApplied is called after a mutation and its trace are persisted
// and the trace has reached its final status.
type OnMutationApplied interface {
	Plugin
	OnMutationApplied(ctx context.Context, a *account.Account, t *trace.Trace) error
}

// OnMutationRejected is called when validation rejects a mutation. Nothing
// was written.
type OnMutationRejected interface {
	Plugin
	OnMutationRejected(ctx context.Context, owner string, op trace.Operation, amount types.Amount, reason error) error
}

// OnTransferFailed is called when the external leg of a transfer fails and
// the trace has been marked Failed.
type OnTransferFailed interface {
	Plugin
	OnTransferFailed(ctx context.Context, t *trace.Trace, cause error) error
}

// OnBatchRolledBack is called after a batch transfer restored its
// pre-batch snapshot. traces holds the leg traces marked Failed.
type OnBatchRolledBack interface {
	Plugin
	OnBatchRolledBack(ctx context.Context, owner, batchID string, traces []*trace.Trace, cause error) error
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnStalePendingTrace is called by the reconciler for every trace left
// Pending longer than the configured TTL.
type OnStalePendingTrace interface {
	Plugin
	OnStalePendingTrace(ctx context.Context, t *trace.Trace, age time.Duration) error
}
