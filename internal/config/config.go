// Package config loads the treasury CLI configuration from a YAML file and
// TREASURY_* environment variables. Environment values win.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	treasury "github.com/xraph/treasury"
	"github.com/xraph/treasury/store/backend"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "TREASURY_"

// Config is the full CLI configuration.
type Config struct {
	HTTP     HTTP           `yaml:"http" envPrefix:"HTTP_"`
	Auth     Auth           `yaml:"auth" envPrefix:"AUTH_"`
	Store    backend.Config `yaml:"store" envPrefix:"STORE_"`
	Engine   Engine         `yaml:"engine" envPrefix:"ENGINE_"`
	LogLevel string         `yaml:"log_level" env:"LOG_LEVEL"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// Auth configures bearer tokens. An empty Secret disables authentication.
type Auth struct {
	Secret string `yaml:"secret" env:"SECRET"`
	Issuer string `yaml:"issuer" env:"ISSUER"`
}

// Engine mirrors the treasury engine options.
type Engine struct {
	BatchTraceMode    string        `yaml:"batch_trace_mode" env:"BATCH_TRACE_MODE"`
	PendingTTL        time.Duration `yaml:"pending_ttl" env:"PENDING_TTL"`
	ReconcileSchedule string        `yaml:"reconcile_schedule" env:"RECONCILE_SCHEDULE"`
	AnalyticsWorkers  int           `yaml:"analytics_workers" env:"ANALYTICS_WORKERS"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTP: HTTP{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: backend.Config{Driver: backend.Memory},
		Engine: Engine{
			BatchTraceMode:    string(treasury.BatchTracePerLeg),
			PendingTTL:        treasury.DefaultPendingTTL,
			ReconcileSchedule: treasury.DefaultReconcileSchedule,
		},
		LogLevel: "info",
	}
}

// Load reads path (skipped when empty) over the defaults, then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks values the engine would otherwise reject later.
func (c Config) Validate() error {
	var errs []error
	switch treasury.BatchTraceMode(c.Engine.BatchTraceMode) {
	case treasury.BatchTracePerLeg, treasury.BatchTraceAggregate:
	default:
		errs = append(errs, fmt.Errorf("config: unknown engine.batch_trace_mode %q", c.Engine.BatchTraceMode))
	}
	if c.Engine.PendingTTL <= 0 {
		errs = append(errs, errors.New("config: engine.pending_ttl must be positive"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("config: http.addr must not be empty"))
	}
	return errors.Join(errs...)
}

// EngineOptions maps the engine section to treasury options.
func (c Config) EngineOptions() []treasury.Option {
	return []treasury.Option{
		treasury.WithBatchTraceMode(treasury.BatchTraceMode(c.Engine.BatchTraceMode)),
		treasury.WithPendingTTL(c.Engine.PendingTTL),
		treasury.WithReconcileSchedule(c.Engine.ReconcileSchedule),
		treasury.WithAnalyticsWorkers(c.Engine.AnalyticsWorkers),
	}
}
