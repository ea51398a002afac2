// Package observability provides a metrics extension for the treasury that
// records ledger event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/treasury/account"
	"github.com/xraph/treasury/plugin"
	"github.com/xraph/treasury/trace"
	"github.com/xraph/treasury/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnAccountOpened     = (*MetricsExtension)(nil)
	_ plugin.OnAccountDeleted    = (*MetricsExtension)(nil)
	_ plugin.OnMutationApplied   = (*MetricsExtension)(nil)
	_ plugin.OnMutationRejected  = (*MetricsExtension)(nil)
	_ plugin.OnTransferFailed    = (*MetricsExtension)(nil)
	_ plugin.OnBatchRolledBack   = (*MetricsExtension)(nil)
	_ plugin.OnStalePendingTrace = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger-wide event metrics.
// Register it as a treasury plugin to track them automatically.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountOpened  Counter
	AccountDeleted Counter

	// Mutation metrics
	MutationApplied  Counter
	MutationRejected Counter
	MutationAmount   Histogram

	// Transfer metrics
	TransferFailed  Counter
	BatchRolledBack Counter
	BatchLegsFailed Counter

	// Reconciliation metrics
	StalePending    Counter
	StalePendingAge Histogram

	// Applied counters per operation.
	byOperation map[trace.Operation]Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,

		// Account metrics
		AccountOpened:  factory.Counter("treasury.account.opened"),
		AccountDeleted: factory.Counter("treasury.account.deleted"),

		// Mutation metrics
		MutationApplied:  factory.Counter("treasury.mutation.applied"),
		MutationRejected: factory.Counter("treasury.mutation.rejected"),
		MutationAmount:   factory.Histogram("treasury.mutation.amount"),

		// Transfer metrics
		TransferFailed:  factory.Counter("treasury.transfer.failed"),
		BatchRolledBack: factory.Counter("treasury.batch.rolled_back"),
		BatchLegsFailed: factory.Counter("treasury.batch.legs_failed"),

		// Reconciliation metrics
		StalePending:    factory.Counter("treasury.trace.stale_pending"),
		StalePendingAge: factory.Histogram("treasury.trace.stale_pending.age_seconds"),
	}

	m.byOperation = make(map[trace.Operation]Counter, len(trace.Operations))
	for _, op := range trace.Operations {
		m.byOperation[op] = factory.Counter("treasury.mutation.applied." + string(op))
	}
	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountOpened implements plugin.OnAccountOpened.
func (m *MetricsExtension) OnAccountOpened(_ context.Context, _ *account.Account) error {
	m.AccountOpened.Inc()
	return nil
}

// OnAccountDeleted implements plugin.OnAccountDeleted.
func (m *MetricsExtension) OnAccountDeleted(_ context.Context, _ string) error {
	m.AccountDeleted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Mutation hooks
// ──────────────────────────────────────────────────

// OnMutationApplied implements plugin.OnMutationApplied.
func (m *MetricsExtension) OnMutationApplied(_ context.Context, _ *account.Account, t *trace.Trace) error {
	m.MutationApplied.Inc()
	m.MutationAmount.Observe(t.Amount().Float64())
	if c, ok := m.byOperation[t.Operation()]; ok {
		c.Inc()
	}
	return nil
}

// OnMutationRejected implements plugin.OnMutationRejected.
func (m *MetricsExtension) OnMutationRejected(_ context.Context, _ string, _ trace.Operation, _ types.Amount, _ error) error {
	m.MutationRejected.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Transfer hooks
// ──────────────────────────────────────────────────

// OnTransferFailed implements plugin.OnTransferFailed.
func (m *MetricsExtension) OnTransferFailed(_ context.Context, _ *trace.Trace, _ error) error {
	m.TransferFailed.Inc()
	return nil
}

// OnBatchRolledBack implements plugin.OnBatchRolledBack.
func (m *MetricsExtension) OnBatchRolledBack(_ context.Context, _, _ string, traces []*trace.Trace, _ error) error {
	m.BatchRolledBack.Inc()
	m.BatchLegsFailed.Add(float64(len(traces)))
	return nil
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnStalePendingTrace implements plugin.OnStalePendingTrace.
func (m *MetricsExtension) OnStalePendingTrace(_ context.Context, _ *trace.Trace, age time.Duration) error {
	m.StalePending.Inc()
	m.StalePendingAge.Observe(age.Seconds())
	return nil
}
