// Package config defines the tuning surface consumed read-only by the
// ProbMesh engine and its subsystems. Settings can be populated from the
// environment (FromEnv) or constructed in code starting from Default().
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// CacheConfig tunes the evaluation result cache.
type CacheConfig struct {
	// Enabled toggles the cache. Disabling it never changes evaluator
	// output, only latency.
	Enabled bool `env:"PROBMESH_CACHE_ENABLED" envDefault:"true"`

	// MaxEntries caps the number of cached results; least-recently-used
	// entries are evicted beyond it.
	MaxEntries int `env:"PROBMESH_CACHE_MAX_ENTRIES" envDefault:"1024"`

	// TTL bounds the lifetime of a cached result.
	TTL time.Duration `env:"PROBMESH_CACHE_TTL" envDefault:"30s"`

	// QuantizeStep optionally buckets the input probability for cache
	// keying. Zero means exact-match keying.
	QuantizeStep float64 `env:"PROBMESH_CACHE_QUANTIZE_STEP" envDefault:"0"`
}

// PoolConfig tunes the evaluator instance pool.
type PoolConfig struct {
	// Enabled toggles pooling. When disabled every call constructs a fresh
	// instance.
	Enabled bool `env:"PROBMESH_POOL_ENABLED" envDefault:"true"`

	// MaxPerType caps live instances per evaluator identity.
	MaxPerType int `env:"PROBMESH_POOL_MAX_PER_TYPE" envDefault:"32"`

	// PrewarmCount is the number of instances constructed eagerly for each
	// registered identity at engine start.
	PrewarmCount int `env:"PROBMESH_POOL_PREWARM" envDefault:"0"`

	// RejectWhenExhausted makes pool exhaustion fail the call instead of
	// falling back to an unpooled instance.
	RejectWhenExhausted bool `env:"PROBMESH_POOL_REJECT_WHEN_EXHAUSTED" envDefault:"false"`
}

// TrackerConfig tunes the context tracking store.
type TrackerConfig struct {
	// MaxContexts is the emergency cleanup target; the background loop
	// evicts oldest leaves once the registered count exceeds it.
	MaxContexts int `env:"PROBMESH_TRACKER_MAX_CONTEXTS" envDefault:"10000"`

	// MaxLifetime is the age beyond which leaf contexts are expired.
	MaxLifetime time.Duration `env:"PROBMESH_TRACKER_MAX_LIFETIME" envDefault:"5m"`

	// CleanupInterval is the cadence of the background cleanup loop. Zero
	// disables the loop; cleanup can still be invoked manually.
	CleanupInterval time.Duration `env:"PROBMESH_TRACKER_CLEANUP_INTERVAL" envDefault:"30s"`
}

// PipelineConfig tunes evaluator chain composition.
type PipelineConfig struct {
	// StopOnFirstFailure aborts the remaining chain on the first evaluator
	// failure. The default is to continue, skipping failed evaluators.
	StopOnFirstFailure bool `env:"PROBMESH_PIPELINE_STOP_ON_FIRST_FAILURE" envDefault:"false"`
}

// EngineConfig tunes the orchestrator.
type EngineConfig struct {
	// Timeout bounds one evaluation call. The timeout is cooperative:
	// checked between evaluators, never interrupting one mid-phase. Zero
	// means no deadline.
	Timeout time.Duration `env:"PROBMESH_ENGINE_TIMEOUT" envDefault:"0"`

	// MaxConcurrentBatch bounds the fan-out of one batch call.
	MaxConcurrentBatch int `env:"PROBMESH_ENGINE_MAX_CONCURRENT_BATCH" envDefault:"8"`

	// ResultBufferSize sets channel buffering for async results.
	ResultBufferSize int `env:"PROBMESH_ENGINE_RESULT_BUFFER" envDefault:"1"`
}

// Config aggregates all subsystem settings.
type Config struct {
	Cache    CacheConfig
	Pool     PoolConfig
	Tracker  TrackerConfig
	Pipeline PipelineConfig
	Engine   EngineConfig
}

// Default returns the baseline configuration used when no overrides are
// supplied.
func Default() Config {
	return Config{
		Cache:    CacheConfig{Enabled: true, MaxEntries: 1024, TTL: 30 * time.Second},
		Pool:     PoolConfig{Enabled: true, MaxPerType: 32},
		Tracker:  TrackerConfig{MaxContexts: 10000, MaxLifetime: 5 * time.Minute, CleanupInterval: 30 * time.Second},
		Pipeline: PipelineConfig{},
		Engine:   EngineConfig{MaxConcurrentBatch: 8, ResultBufferSize: 1},
	}
}

// FromEnv loads configuration from environment variables, falling back to
// the documented defaults for unset keys.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
