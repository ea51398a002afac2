// Package extension provides the Forge extension adapter for Treasury.
//
// It implements the forge.Extension interface to integrate Treasury
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.treasury" or "treasury" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	treasury "github.com/xraph/treasury"
	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/store/backend"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "treasury"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Account ledger with audit trail and analytics"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Treasury as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config       Config
	engine       *treasury.Treasury
	store        store.Store
	treasuryOpts []treasury.Option
}

// New creates a new Treasury Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Treasury instance.
// This is nil until Register is called.
func (e *Extension) Engine() *treasury.Treasury { return e.engine }

// Register implements [forge.Extension]. It loads configuration, opens the
// store, builds the engine and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	opts, err := e.buildTreasuryOpts()
	if err != nil {
		return err
	}

	if e.store == nil {
		s, err := backend.Open(context.Background(), e.config.Store)
		if err != nil {
			return fmt.Errorf("treasury: open store: %w", err)
		}
		e.store = s
	}

	e.engine = treasury.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*treasury.Treasury, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("treasury: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil && !errors.Is(err, treasury.ErrNotStarted) {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("treasury: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildTreasuryOpts constructs treasury.Option values from the resolved config.
func (e *Extension) buildTreasuryOpts() ([]treasury.Option, error) {
	opts := make([]treasury.Option, 0, len(e.treasuryOpts)+5)

	switch mode := treasury.BatchTraceMode(e.config.BatchTraceMode); mode {
	case treasury.BatchTracePerLeg, treasury.BatchTraceAggregate:
		opts = append(opts, treasury.WithBatchTraceMode(mode))
	default:
		return nil, fmt.Errorf("treasury: unknown batch_trace_mode %q", e.config.BatchTraceMode)
	}

	opts = append(opts,
		treasury.WithPendingTTL(e.config.PendingTTL),
		treasury.WithAutoMigrate(!e.config.DisableMigrate),
		treasury.WithAnalyticsWorkers(e.config.AnalyticsWorkers),
	)

	if e.config.DisableReconcile {
		opts = append(opts, treasury.WithReconcileSchedule(""))
	} else {
		opts = append(opts, treasury.WithReconcileSchedule(e.config.ReconcileSchedule))
	}

	// Pass-through options win over config.
	opts = append(opts, e.treasuryOpts...)

	return opts, nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("treasury: configuration is required but not found in config files; " +
				"ensure 'extensions.treasury' or 'treasury' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("treasury: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("batch_trace_mode", e.config.BatchTraceMode),
		forge.F("pending_ttl", e.config.PendingTTL),
		forge.F("reconcile_schedule", e.config.ReconcileSchedule),
		forge.F("disable_reconcile", e.config.DisableReconcile),
		forge.F("store_driver", e.config.Store.Driver),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.treasury", "treasury"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("treasury: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("treasury: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BatchTraceMode == "" {
		cfg.BatchTraceMode = defaults.BatchTraceMode
	}
	if cfg.PendingTTL == 0 {
		cfg.PendingTTL = defaults.PendingTTL
	}
	if cfg.ReconcileSchedule == "" {
		cfg.ReconcileSchedule = defaults.ReconcileSchedule
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = defaults.Store.Driver
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableReconcile {
		yamlConfig.DisableReconcile = true
	}

	if yamlConfig.BatchTraceMode == "" {
		yamlConfig.BatchTraceMode = programmaticConfig.BatchTraceMode
	}
	if yamlConfig.PendingTTL == 0 {
		yamlConfig.PendingTTL = programmaticConfig.PendingTTL
	}
	if yamlConfig.ReconcileSchedule == "" {
		yamlConfig.ReconcileSchedule = programmaticConfig.ReconcileSchedule
	}
	if yamlConfig.AnalyticsWorkers == 0 {
		yamlConfig.AnalyticsWorkers = programmaticConfig.AnalyticsWorkers
	}
	if yamlConfig.Store.Driver == "" {
		yamlConfig.Store = programmaticConfig.Store
	}

	return mergeWithDefaults(yamlConfig)
}
