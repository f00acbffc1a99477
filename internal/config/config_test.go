package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "server:\n  port: \"9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 60, cfg.Task.Interval)
	assert.Equal(t, 5, cfg.Task.MaxAttempts)
	assert.Equal(t, uint64(21000), cfg.Chain.GasLimit)
	assert.False(t, cfg.Chain.Enabled)
	assert.Equal(t, "info", cfg.Log.GetLevel())
	assert.Equal(t, 100, cfg.Log.GetRotation().MaxSizeMB)
	assert.True(t, cfg.Log.GetRotation().Compress)
}

func TestLoadFileEnvOverride(t *testing.T) {
	t.Setenv("EVFUND_DATABASE_DRIVER", "sqlite")
	t.Setenv("EVFUND_TASK_SETTLEMENT_WORKERS", "8")

	cfg, err := LoadFile(writeConfig(t, "database:\n  driver: postgres\n"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8, cfg.Task.SettlementWorkers)
}

func TestLoadFileInvalid(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "database:\n  driver: mysql\n"))
	require.Error(t, err)

	_, err = LoadFile(writeConfig(t, "chain:\n  enabled: true\n"))
	require.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
