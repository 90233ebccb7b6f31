package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, "./data", cfg.Storage.BadgerDir)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TRIAGEFLOW_STORAGE_BACKEND", "postgres")
	t.Setenv("TRIAGEFLOW_STORAGE_POSTGRES_DSN", "postgres://localhost/triageflow")
	t.Setenv("TRIAGEFLOW_ENGINE_RETRY_ATTEMPTS", "5")
	t.Setenv("TRIAGEFLOW_ENGINE_NODE_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "postgres://localhost/triageflow", cfg.Storage.PostgresDSN)
	assert.Equal(t, 5, cfg.Engine.RetryAttempts)
	assert.Equal(t, 45*time.Second, cfg.Engine.NodeTimeout)
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("TRIAGEFLOW_STORAGE_BACKEND", "postgres")
	t.Setenv("TRIAGEFLOW_STORAGE_POSTGRES_DSN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.postgres_dsn")
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("TRIAGEFLOW_STORAGE_BACKEND", "etcd")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestEngineConfig_AppliesDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Engine.RetryAttempts = 7

	engineCfg := cfg.EngineConfig()
	assert.Equal(t, 7, engineCfg.RetryAttempts)
	assert.Equal(t, 64, engineCfg.MaxConcurrentInstances)
	assert.Equal(t, 250*time.Millisecond, engineCfg.RetryBaseDelay)
}
