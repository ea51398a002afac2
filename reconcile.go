package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/treasury/trace"
)

const (
	reconcileTimeout = 25 * time.Second
	reconcileBatch   = 500
)

// Reconcile reports traces that stayed Pending longer than the pending TTL,
// oldest first. These are operations whose final status write failed; the
// account side is already persisted. Reconcile never changes them.
func (t *Treasury) Reconcile(ctx context.Context) ([]*trace.Trace, error) {
	now := t.now()
	stale, err := t.store.ListPending(ctx, now.Add(-t.pendingTTL), reconcileBatch)
	if err != nil {
		return nil, fmt.Errorf("%w: list pending traces: %w", ErrPersistence, err)
	}

	for _, tr := range stale {
		age := now.Sub(tr.UpdatedAt)
		t.logger.Warn("stale pending trace",
			"owner", tr.Owner,
			"trace_id", tr.ID,
			"seq", tr.Seq,
			"age", age,
		)
		t.plugins.EmitStalePendingTrace(ctx, tr, age)
	}

	if len(stale) > 0 {
		t.logger.Info("reconcile finished", "stale", len(stale))
	}
	return stale, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
