// Package audithook bridges treasury events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/plugin"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnAccountOpened     = (*Extension)(nil)
	_ plugin.OnAccountDeleted    = (*Extension)(nil)
	_ plugin.OnMutationApplied   = (*Extension)(nil)
	_ plugin.OnMutationRejected  = (*Extension)(nil)
	_ plugin.OnTransferFailed    = (*Extension)(nil)
	_ plugin.OnBatchRolledBack   = (*Extension)(nil)
	_ plugin.OnStalePendingTrace = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges treasury events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountOpened implements plugin.OnAccountOpened.
func (e *Extension) OnAccountOpened(ctx context.Context, a *account.Account) error {
	return e.record(ctx, ActionAccountOpened, SeverityInfo, OutcomeSuccess,
		ResourceAccount, a.OwnerID, CategoryAccount, nil,
		"owner", a.OwnerID,
	)
}

// OnAccountDeleted implements plugin.OnAccountDeleted.
func (e *Extension) OnAccountDeleted(ctx context.Context, owner string) error {
	return e.record(ctx, ActionAccountDeleted, SeverityWarning, OutcomeSuccess,
		ResourceAccount, owner, CategoryAccount, nil,
		"owner", owner,
	)
}

// ──────────────────────────────────────────────────
// Mutation hooks
// ──────────────────────────────────────────────────

// OnMutationApplied implements plugin.OnMutationApplied.
func (e *Extension) OnMutationApplied(ctx context.Context, a *account.Account, t *trace.Trace) error {
	kv := []any{
		"owner", t.Owner,
		"operation", string(t.Operation()),
		"amount", t.Amount().String(),
		"status", string(t.Status()),
		"token_balance", a.TokenBalance.String(),
	}
	if rs := t.Recipients(); len(rs) > 0 {
		kv = append(kv, "recipients", strings.Join(rs, ","))
	}
	return e.record(ctx, ActionMutationApplied, SeverityInfo, OutcomeSuccess,
		ResourceTrace, t.ID, CategoryLedger, nil, kv...)
}

// OnMutationRejected implements plugin.OnMutationRejected.
func (e *Extension) OnMutationRejected(ctx context.Context, owner string, op trace.Operation, amount types.Amount, reason error) error {
	return e.record(ctx, ActionMutationRejected, SeverityWarning, OutcomeFailure,
		ResourceAccount, owner, CategoryLedger, reason,
		"owner", owner,
		"operation", string(op),
		"amount", amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Transfer hooks
// ──────────────────────────────────────────────────

// OnTransferFailed implements plugin.OnTransferFailed.
func (e *Extension) OnTransferFailed(ctx context.Context, t *trace.Trace, cause error) error {
	return e.record(ctx, ActionTransferFailed, SeverityError, OutcomeFailure,
		ResourceTrace, t.ID, CategoryTransfer, cause,
		"owner", t.Owner,
		"amount", t.Amount().String(),
		"recipients", strings.Join(t.Recipients(), ","),
	)
}

// OnBatchRolledBack implements plugin.OnBatchRolledBack.
func (e *Extension) OnBatchRolledBack(ctx context.Context, owner, batchID string, traces []*trace.Trace, cause error) error {
	ids := make([]string, len(traces))
	for i, t := range traces {
		ids[i] = t.ID
	}
	return e.record(ctx, ActionBatchRolledBack, SeverityError, OutcomeFailure,
		ResourceBatch, batchID, CategoryTransfer, cause,
		"owner", owner,
		"trace_ids", ids,
	)
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnStalePendingTrace implements plugin.OnStalePendingTrace.
func (e *Extension) OnStalePendingTrace(ctx context.Context, t *trace.Trace, age time.Duration) error {
	return e.record(ctx, ActionTracePendingStale, SeverityCritical, OutcomePartial,
		ResourceTrace, t.ID, CategoryIntegrity, nil,
		"owner", t.Owner,
		"operation", string(t.Operation()),
		"age_seconds", int64(age/time.Second),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
