package treasury

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xraph/treasury/gateway"
	"github.com/xraph/treasury/plugin"
	"github.com/xraph/treasury/store"
)

// BatchTraceMode selects how a batch transfer is recorded in the audit trail.
type BatchTraceMode string

const (
	// BatchTracePerLeg writes one "transfer" trace per leg, so legs stay
	// separable in queries and analytics.
	BatchTracePerLeg BatchTraceMode = "per_leg"
	// BatchTraceAggregate writes a single "batch_transfer" trace whose
	// amount is the batch total.
	BatchTraceAggregate BatchTraceMode = "aggregate"
)

// Defaults for the stale Pending trace reconciler.
const (
	DefaultPendingTTL        = 5 * time.Minute
	DefaultReconcileSchedule = "@every 1m"
)

// Treasury is the account ledger engine. All balance mutations go through it;
// each one updates the owner's Account and appends exactly one Trace per
// operation (or per batch leg).
type Treasury struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	gateway gateway.Gateway
	locks   *ownerLocks
	clock   func() time.Time

	batchMode         BatchTraceMode
	pendingTTL        time.Duration
	reconcileSchedule string
	analyticsWorkers  int
	skipMigrate       bool

	stampMu   sync.Mutex
	lastStamp int64

	cron    *cron.Cron
	started atomic.Bool
}

// New creates a Treasury over s.
func New(s store.Store, opts ...Option) *Treasury {
	t := &Treasury{
		store:             s,
		plugins:           plugin.NewRegistry(),
		logger:            slog.Default(),
		gateway:           gateway.NewNop(),
		locks:             newOwnerLocks(),
		clock:             time.Now,
		batchMode:         BatchTracePerLeg,
		pendingTTL:        DefaultPendingTTL,
		reconcileSchedule: DefaultReconcileSchedule,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Option configures a Treasury instance.
type Option func(*Treasury)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Treasury) {
		t.logger = logger
		t.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(t *Treasury) {
		_ = t.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithGateway sets the external ledger used by Transfer and BatchTransfer.
func WithGateway(g gateway.Gateway) Option {
	return func(t *Treasury) {
		t.gateway = g
	}
}

// WithBatchTraceMode selects per-leg or aggregate batch traces.
func WithBatchTraceMode(m BatchTraceMode) Option {
	return func(t *Treasury) {
		t.batchMode = m
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Treasury) {
		t.clock = now
	}
}

// WithPendingTTL sets how long a trace may stay Pending before the
// reconciler reports it.
func WithPendingTTL(d time.Duration) Option {
	return func(t *Treasury) {
		t.pendingTTL = d
	}
}

// WithReconcileSchedule sets the reconciler's cron spec (seconds field
// enabled). An empty spec disables the reconciler.
func WithReconcileSchedule(spec string) Option {
	return func(t *Treasury) {
		t.reconcileSchedule = spec
	}
}

// WithAnalyticsWorkers bounds how many analyses Analyze runs at once
// (GOMAXPROCS when n < 1).
func WithAnalyticsWorkers(n int) Option {
	return func(t *Treasury) {
		t.analyticsWorkers = n
	}
}

// WithAutoMigrate controls whether Start migrates the store (default: true).
func WithAutoMigrate(enabled bool) Option {
	return func(t *Treasury) {
		t.skipMigrate = !enabled
	}
}

// Store returns the underlying store.
func (t *Treasury) Store() store.Store { return t.store }

// Plugins returns the plugin registry.
func (t *Treasury) Plugins() *plugin.Registry { return t.plugins }

// BatchMode returns the configured batch trace mode.
func (t *Treasury) BatchMode() BatchTraceMode { return t.batchMode }

// Start migrates the store, initializes plugins and schedules the reconciler.
func (t *Treasury) Start(ctx context.Context) error {
	if !t.skipMigrate {
		if err := t.store.Migrate(ctx); err != nil {
			return err
		}
	}

	t.plugins.EmitInit(ctx, t)

	if t.reconcileSchedule != "" {
		c := cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger{t.logger}),
			cron.WithChain(cron.Recover(cronLogger{t.logger})),
		)
		if _, err := c.AddFunc(t.reconcileSchedule, func() {
			rctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
			defer cancel()
			if _, err := t.Reconcile(rctx); err != nil {
				t.logger.Warn("reconcile failed", "error", err)
			}
		}); err != nil {
			return err
		}
		c.Start()
		t.cron = c
	}

	t.started.Store(true)
	t.logger.Info("treasury started",
		"batch_mode", t.batchMode,
		"pending_ttl", t.pendingTTL,
		"reconcile_schedule", t.reconcileSchedule,
	)

	return nil
}

// Stop halts the reconciler, notifies plugins and closes the store.
func (t *Treasury) Stop() error {
	if !t.started.CompareAndSwap(true, false) {
		return ErrNotStarted
	}
	if t.cron != nil {
		<-t.cron.Stop().Done()
		t.cron = nil
	}

	t.plugins.EmitShutdown(context.Background())

	return t.store.Close()
}

// now returns the engine clock in UTC.
func (t *Treasury) now() time.Time { return t.clock().UTC() }

// stamp returns a strictly increasing nanosecond timestamp used to build
// default trace ids, so two operations within one clock tick never collide.
func (t *Treasury) stamp() int64 {
	t.stampMu.Lock()
	defer t.stampMu.Unlock()

	n := t.now().UnixNano()
	if n <= t.lastStamp {
		n = t.lastStamp + 1
	}
	t.lastStamp = n
	return n
}
