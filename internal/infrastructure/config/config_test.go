package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8030", cfg.Server.Port)
	assert.Equal(t, 24, cfg.Terminal.Rows)
	assert.Equal(t, 80, cfg.Terminal.Cols)
	assert.Equal(t, 60*time.Second, cfg.Executor.DefaultTimeout)
	assert.Equal(t, 2*time.Second, cfg.Executor.StabilityWindow)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("TERMINAL_SHELL", "/bin/zsh")
	t.Setenv("EXEC_TIMEOUT", "5s")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "/bin/zsh", cfg.Terminal.Shell)
	assert.Equal(t, 5*time.Second, cfg.Executor.DefaultTimeout)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadEnvDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.Terminal.EventQueueSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Executor.PollInitial)
	assert.Equal(t, "/tmp/autobot-transcripts", cfg.Transcript.Dir)
}
