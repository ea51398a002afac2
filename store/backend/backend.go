// Package backend opens a store.Store from a driver name and connection
// string, so configuration files can pick the storage layer.
package backend

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/treasury/store"
	"github.com/xraph/treasury/store/memory"
	"github.com/xraph/treasury/store/mongo"
	"github.com/xraph/treasury/store/postgres"
	"github.com/xraph/treasury/store/redis"
	"github.com/xraph/treasury/store/sqlite"
)

// Driver names.
const (
	Memory   = "memory"
	SQLite   = "sqlite"
	Postgres = "postgres"
	Mongo    = "mongo"
	Redis    = "redis"
)

// Config selects and configures a backend.
type Config struct {
	// Driver is one of memory, sqlite, postgres, mongo or redis
	// (default: memory).
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver" env:"DRIVER"`

	// DSN is the connection string: a file path for sqlite, a URL for
	// postgres and mongo, host:port for redis.
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn" env:"DSN"`

	// Database overrides the mongo database named in the DSN.
	Database string `json:"database" mapstructure:"database" yaml:"database" env:"DATABASE"`

	// Prefix namespaces redis keys (default: "treasury").
	Prefix string `json:"prefix" mapstructure:"prefix" yaml:"prefix" env:"PREFIX"`

	// Password and DB select the redis database.
	Password string `json:"password" mapstructure:"password" yaml:"password" env:"PASSWORD"`
	DB       int    `json:"db" mapstructure:"db" yaml:"db" env:"DB"`
}

// Open connects the configured backend. The store is not migrated.
func Open(ctx context.Context, cfg Config) (store.Store, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver != Memory && driver != "" && cfg.DSN == "" {
		return nil, fmt.Errorf("treasury/backend: %s needs a dsn", driver)
	}

	switch driver {
	case "", Memory:
		return memory.New(), nil
	case SQLite:
		return sqlite.Open(ctx, cfg.DSN)
	case Postgres, "pg":
		return postgres.Open(ctx, cfg.DSN)
	case Mongo, "mongodb":
		return mongo.Open(ctx, cfg.DSN, cfg.Database)
	case Redis:
		return redis.Open(ctx, &goredis.Options{
			Addr:     cfg.DSN,
			Password: cfg.Password,
			DB:       cfg.DB,
		}, cfg.Prefix)
	default:
		return nil, fmt.Errorf("treasury/backend: unknown driver %q", cfg.Driver)
	}
}
