package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "treasury.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
http:
  addr: ":9000"
store:
  driver: sqlite
  dsn: /var/lib/treasury.db
engine:
  batch_trace_mode: aggregate
  pending_ttl: 2m
`)
	t.Setenv("TREASURY_HTTP_ADDR", ":9100")
	t.Setenv("TREASURY_AUTH_SECRET", "s3cret")
	t.Setenv("TREASURY_ENGINE_ANALYTICS_WORKERS", "4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/treasury.db", cfg.Store.DSN)
	assert.Equal(t, "aggregate", cfg.Engine.BatchTraceMode)
	assert.Equal(t, 2*time.Minute, cfg.Engine.PendingTTL)
	assert.Equal(t, 4, cfg.Engine.AnalyticsWorkers)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Len(t, cfg.EngineOptions(), 4)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "config: read")

	_, err = Load(writeFile(t, "http: [unclosed"))
	assert.ErrorContains(t, err, "config: parse")

	_, err = Load(writeFile(t, "engine:\n  batch_trace_mode: sideways\n  pending_ttl: 0s\n"))
	assert.ErrorContains(t, err, "batch_trace_mode")
	assert.ErrorContains(t, err, "pending_ttl")
}
