package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 1024, cfg.Cache.MaxEntries)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.True(t, cfg.Pool.Enabled)
	assert.Equal(t, 32, cfg.Pool.MaxPerType)
	assert.Equal(t, 10000, cfg.Tracker.MaxContexts)
	assert.False(t, cfg.Pipeline.StopOnFirstFailure)
	assert.Equal(t, 8, cfg.Engine.MaxConcurrentBatch)
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, Default().Cache.MaxEntries, cfg.Cache.MaxEntries)
	assert.Equal(t, Default().Tracker.MaxLifetime, cfg.Tracker.MaxLifetime)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PROBMESH_CACHE_ENABLED", "false")
	t.Setenv("PROBMESH_CACHE_MAX_ENTRIES", "64")
	t.Setenv("PROBMESH_CACHE_TTL", "90s")
	t.Setenv("PROBMESH_POOL_MAX_PER_TYPE", "4")
	t.Setenv("PROBMESH_POOL_REJECT_WHEN_EXHAUSTED", "true")
	t.Setenv("PROBMESH_TRACKER_MAX_LIFETIME", "1m")
	t.Setenv("PROBMESH_PIPELINE_STOP_ON_FIRST_FAILURE", "true")
	t.Setenv("PROBMESH_ENGINE_TIMEOUT", "250ms")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 64, cfg.Cache.MaxEntries)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 4, cfg.Pool.MaxPerType)
	assert.True(t, cfg.Pool.RejectWhenExhausted)
	assert.Equal(t, time.Minute, cfg.Tracker.MaxLifetime)
	assert.True(t, cfg.Pipeline.StopOnFirstFailure)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.Timeout)
}

func TestFromEnvInvalidValue(t *testing.T) {
	t.Setenv("PROBMESH_CACHE_MAX_ENTRIES", "not-a-number")

	_, err := FromEnv()
	assert.Error(t, err)
}
