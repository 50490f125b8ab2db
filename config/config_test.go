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

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, ProviderMock, cfg.Provider)
	assert.Equal(t, int64(8), cfg.MaxConcurrentDispatches)
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, 5*time.Minute, cfg.WorkerIdleTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CHATMESH_ADDR", ":9999")
	t.Setenv("CHATMESH_MAX_CONCURRENT", "2")
	t.Setenv("CHATMESH_WORKER_IDLE_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, int64(2), cfg.MaxConcurrentDispatches)
	assert.Equal(t, 30*time.Second, cfg.WorkerIdleTimeout)
}

func TestLoad_ProviderRequiresKey(t *testing.T) {
	t.Setenv("CHATMESH_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")

	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	t.Setenv("CHATMESH_PROVIDER", "carrier-pigeon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsBadBounds(t *testing.T) {
	t.Setenv("CHATMESH_MAX_CONCURRENT", "0")

	_, err := Load()
	assert.Error(t, err)
}
