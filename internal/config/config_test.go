package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, time.Minute, cfg.Query.SnapshotRefresh)
	assert.False(t, cfg.UseMemory)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
postgres:
  dsn: "postgres://u:p@localhost:5432/series"
clickhouse:
  dsn: "clickhouse://localhost:9000/series"
redis:
  addr: "localhost:6379"
  ttl: 10m
query:
  snapshot_refresh: 30s
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "postgres://u:p@localhost:5432/series", cfg.Postgres.DSN)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, 30*time.Second, cfg.Query.SnapshotRefresh)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("POSTGRES_DSN", "postgres://env")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("USE_MEMORY", "true")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "postgres://env", cfg.Postgres.DSN)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.True(t, cfg.UseMemory)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err, "DSNs are required without use_memory")

	cfg.UseMemory = true
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.Postgres.DSN = "postgres://x"
	cfg.Clickhouse.DSN = "clickhouse://x"
	assert.NoError(t, cfg.Validate())

	cfg.Query.SnapshotRefresh = 0
	assert.Error(t, cfg.Validate())
}
