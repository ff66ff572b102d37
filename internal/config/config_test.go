package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[catalog]
source = "postgres"
runtime = false
retry_delay = "2s"

[effects]
tick_rate = "50ms"
default_lifetime = "3s"

[logging]
level = "debug"
format = "json"
`), "inline")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Catalog.Source)
	assert.False(t, cfg.Catalog.Runtime)
	assert.Equal(t, 2*time.Second, cfg.Catalog.RetryDelay)
	assert.Equal(t, 50*time.Millisecond, cfg.Effects.TickRate)
	assert.Equal(t, 3*time.Second, cfg.Effects.DefaultLifetime)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// untouched sections keep their defaults
	assert.Equal(t, "data/content", cfg.Catalog.ContentRoot)
	assert.Equal(t, 256, cfg.Effects.PoolCapacity)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestParse_RejectsUnknownSource(t *testing.T) {
	_, err := Parse([]byte(`
[catalog]
source = "s3"
`), "inline")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog.source")
}

func TestParse_RejectsNonPositiveRetryDelay(t *testing.T) {
	for _, delay := range []string{"0s", "-1s"} {
		_, err := Parse([]byte(`
[catalog]
retry_delay = "`+delay+`"
`), "inline")
		require.Error(t, err, delay)
		assert.Contains(t, err.Error(), "catalog.retry_delay")
	}
}

func TestParse_RejectsZeroTickRate(t *testing.T) {
	_, err := Parse([]byte(`
[effects]
tick_rate = "0s"
`), "inline")
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assetcore.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nname = \"test\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Server.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "assetcore.toml"))
	require.NoError(t, err)
	assert.Equal(t, "assetcore-dev", cfg.Server.Name)
	assert.Equal(t, 5*time.Second, cfg.Catalog.RetryDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Effects.TickRate)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
}
