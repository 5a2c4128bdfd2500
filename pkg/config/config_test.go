package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CallsDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Calls.RingWindow)
	assert.Equal(t, StoreDriverPostgres, cfg.Calls.StoreDriver)
	assert.Equal(t, "invitations:changes", cfg.Calls.ChangeChannel)
}

func TestLoad_CallsOverrides(t *testing.T) {
	t.Setenv("CALLS_RING_WINDOW", "5s")
	t.Setenv("CALLS_STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Calls.RingWindow)
	assert.Equal(t, StoreDriverMemory, cfg.Calls.StoreDriver)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("CALLS_STORE_DRIVER", "sqlite")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALLS_STORE_DRIVER")
}

func TestGetEnvAsDuration_FallsBack(t *testing.T) {
	t.Setenv("SOME_DURATION", "not-a-duration")
	assert.Equal(t, 15*time.Minute, getEnvAsDuration("SOME_DURATION", "15m"))
}
