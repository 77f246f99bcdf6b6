package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// LoaderConfig configures the load scheduler.
type LoaderConfig struct {
	BatchSize     int `toml:"batch_size"`
	MaxConcurrent int `toml:"max_concurrent"`
	// PreloadDistance is the world-space radius inside which assets are
	// preloaded before they become visible.
	PreloadDistance float64 `toml:"preload_distance"`
	RetryAttempts   int     `toml:"retry_attempts"`
	RetryDelayMS    int64   `toml:"retry_delay_ms"`
	// YieldDelayMS is the pause between dispatch batches so the scheduler
	// never monopolizes a core while the queue drains.
	YieldDelayMS int64 `toml:"yield_delay_ms"`
}

func (lc LoaderConfig) RetryDelay() time.Duration {
	return time.Duration(lc.RetryDelayMS) * time.Millisecond
}

func (lc LoaderConfig) YieldDelay() time.Duration {
	return time.Duration(lc.YieldDelayMS) * time.Millisecond
}

// CacheConfig configures the resource cache.
type CacheConfig struct {
	// SoftCapBytes triggers eviction directly on insert once exceeded.
	// Zero disables the cap; the pressure monitor still evicts.
	SoftCapBytes int64 `toml:"soft_cap_bytes"`
}

// AtlasConfig configures the texture atlas packer.
type AtlasConfig struct {
	MaxSize int `toml:"max_size"`
	Padding int `toml:"padding"`
}

// PoolConfig is the default configuration applied to object pools created
// without an explicit one.
type PoolConfig struct {
	InitialSize      int     `toml:"initial_size"`
	MaxSize          int     `toml:"max_size"`
	GrowthFactor     float64 `toml:"growth_factor"`
	ShrinkThreshold  float64 `toml:"shrink_threshold"`
	EnableAutoResize bool    `toml:"enable_auto_resize"`
}

// MemoryConfig configures the pressure monitor.
type MemoryConfig struct {
	PressureThreshold float64 `toml:"pressure_threshold"`
	CheckIntervalMS   int64   `toml:"check_interval_ms"`
	// LimitBytes overrides the sampled memory limit. Zero means use the
	// machine's total memory.
	LimitBytes uint64 `toml:"limit_bytes"`
}

func (mc MemoryConfig) CheckInterval() time.Duration {
	return time.Duration(mc.CheckIntervalMS) * time.Millisecond
}

type Config struct {
	Loader LoaderConfig `toml:"loader"`
	Cache  CacheConfig  `toml:"cache"`
	Atlas  AtlasConfig  `toml:"atlas"`
	Pool   PoolConfig   `toml:"pool"`
	Memory MemoryConfig `toml:"memory"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Loader: LoaderConfig{
			BatchSize:       8,
			MaxConcurrent:   4,
			PreloadDistance: 100.0,
			RetryAttempts:   3,
			RetryDelayMS:    500,
			YieldDelayMS:    10,
		},
		Cache: CacheConfig{
			SoftCapBytes: 256 << 20,
		},
		Atlas: AtlasConfig{
			MaxSize: 2048,
			Padding: 2,
		},
		Pool: PoolConfig{
			InitialSize:      16,
			MaxSize:          1024,
			GrowthFactor:     2.0,
			ShrinkThreshold:  0.3,
			EnableAutoResize: true,
		},
		Memory: MemoryConfig{
			PressureThreshold: 0.8,
			CheckIntervalMS:   1000,
		},
	}
}

// Load reads a TOML configuration file over the defaults, so a partial file
// only overrides the keys it names.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the scheduler cannot run with.
func (c *Config) Validate() error {
	if c.Loader.BatchSize < 1 {
		return fmt.Errorf("loader.batch_size must be >= 1, got %d", c.Loader.BatchSize)
	}
	if c.Loader.MaxConcurrent < 1 {
		return fmt.Errorf("loader.max_concurrent must be >= 1, got %d", c.Loader.MaxConcurrent)
	}
	if c.Loader.RetryAttempts < 0 {
		return fmt.Errorf("loader.retry_attempts must be >= 0, got %d", c.Loader.RetryAttempts)
	}
	if c.Atlas.Padding < 0 {
		return fmt.Errorf("atlas.padding must be >= 0, got %d", c.Atlas.Padding)
	}
	if c.Pool.GrowthFactor <= 1.0 {
		return fmt.Errorf("pool.growth_factor must be > 1.0, got %v", c.Pool.GrowthFactor)
	}
	if c.Memory.PressureThreshold <= 0 || c.Memory.PressureThreshold > 1 {
		return fmt.Errorf("memory.pressure_threshold must be in (0, 1], got %v", c.Memory.PressureThreshold)
	}
	return nil
}
