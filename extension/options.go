package extension

import (
	"time"

	treasury "github.com/xraph/treasury"
	"github.com/xraph/treasury/plugin"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/store/backend"
)

// Option configures the Treasury Forge extension.
type Option func(*Extension)

// WithStore sets the store for the treasury engine. It takes precedence
// over the configured backend.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithTreasuryOption passes a treasury.Option through to the underlying engine.
func WithTreasuryOption(opt treasury.Option) Option {
	return func(e *Extension) {
		e.treasuryOpts = append(e.treasuryOpts, opt)
	}
}

// WithPlugin registers a treasury plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.treasuryOpts = append(e.treasuryOpts, treasury.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDisableReconcile turns off the stale Pending trace reconciler.
func WithDisableReconcile() Option {
	return func(e *Extension) { e.config.DisableReconcile = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithBatchTraceMode selects per-leg or aggregate batch traces.
func WithBatchTraceMode(m treasury.BatchTraceMode) Option {
	return func(e *Extension) { e.config.BatchTraceMode = string(m) }
}

// WithPendingTTL sets the stale Pending trace threshold.
func WithPendingTTL(d time.Duration) Option {
	return func(e *Extension) { e.config.PendingTTL = d }
}

// WithReconcileSchedule sets the reconciler cron spec.
func WithReconcileSchedule(spec string) Option {
	return func(e *Extension) { e.config.ReconcileSchedule = spec }
}

// WithAnalyticsWorkers bounds concurrent analyses.
func WithAnalyticsWorkers(n int) Option {
	return func(e *Extension) { e.config.AnalyticsWorkers = n }
}

// WithBackend selects the store backend opened during Register.
func WithBackend(cfg backend.Config) Option {
	return func(e *Extension) { e.config.Store = cfg }
}
