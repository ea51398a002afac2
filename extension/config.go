package extension

import (
	"time"

	treasury "github.com/xraph/treasury"
	"github.com/xraph/treasury/store/backend"
)

// Config holds the Treasury extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.treasury" or "treasury" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BatchTraceMode is "per_leg" (default) or "aggregate".
	BatchTraceMode string `json:"batch_trace_mode" mapstructure:"batch_trace_mode" yaml:"batch_trace_mode"`

	// PendingTTL is how long a trace may stay Pending before the
	// reconciler reports it (default: 5m).
	PendingTTL time.Duration `json:"pending_ttl" mapstructure:"pending_ttl" yaml:"pending_ttl"`

	// ReconcileSchedule is the reconciler cron spec (default: "@every 1m").
	// DisableReconcile turns the reconciler off.
	ReconcileSchedule string `json:"reconcile_schedule" mapstructure:"reconcile_schedule" yaml:"reconcile_schedule"`
	DisableReconcile  bool   `json:"disable_reconcile" mapstructure:"disable_reconcile" yaml:"disable_reconcile"`

	// AnalyticsWorkers bounds concurrent analyses (default: GOMAXPROCS).
	AnalyticsWorkers int `json:"analytics_workers" mapstructure:"analytics_workers" yaml:"analytics_workers"`

	// Store selects the backend when no store was set with WithStore.
	Store backend.Config `json:"store" mapstructure:"store" yaml:"store"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchTraceMode:    string(treasury.BatchTracePerLeg),
		PendingTTL:        treasury.DefaultPendingTTL,
		ReconcileSchedule: treasury.DefaultReconcileSchedule,
		Store:             backend.Config{Driver: backend.Memory},
	}
}
