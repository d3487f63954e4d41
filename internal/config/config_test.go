package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "STORE_BACKEND", "STORE_TIMEOUT_MS", "STORE_ATTEMPTS", "FANOUT_CONCURRENCY", "SCOOPS_TABLE", "REPORTS_TABLE"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 1500*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, 2, cfg.StoreAttempts)
	assert.Equal(t, 8, cfg.FanoutConcurrency)
	assert.False(t, cfg.ScoopsEnabled())
	assert.False(t, cfg.ReportsEnabled())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("STORE_TIMEOUT_MS", "250")
	t.Setenv("STORE_ATTEMPTS", "not-a-number")
	t.Setenv("SCOOPS_TABLE", "scoops")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, 2, cfg.StoreAttempts, "invalid values fall back to the default")
	assert.True(t, cfg.ScoopsEnabled())
}
