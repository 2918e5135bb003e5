// Package config loads the runtime's tunables the way the teacher's
// internal/config does: YAML defaults, then environment-variable
// overrides, then Validate. Nothing here is JIT-specific; it governs the
// arena/scheduler/event-loop knobs spec.md leaves as implementation
// choices.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level document; each section maps to one SPEC_FULL
// component.
type Config struct {
	Arena     ArenaConfig     `yaml:"arena"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Timers    TimersConfig    `yaml:"timers"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ArenaConfig governs C1's mmap region.
type ArenaConfig struct {
	// InitialReserveBytes is loaded and validated with the rest of the
	// document but not read by any component: internal/arena grows its
	// buffer with ordinary append before Finalize, starting from empty.
	InitialReserveBytes int `yaml:"initial_reserve_bytes"`
}

// SchedulerConfig governs C7's worker pool.
type SchedulerConfig struct {
	// Workers is the pool size; 0 means "one per GOMAXPROCS", the "=hardware
	// concurrency" fixed-size pool §5 specifies.
	Workers int `yaml:"workers"`
	// QueueSize bounds the shared task queue (§7's worker-pool-with-backpressure
	// pattern, adapted: a full queue blocks Spawn rather than rejecting, since
	// `go f()` has no caller-visible error path in GoTS).
	QueueSize int `yaml:"queue_size"`
}

// TimersConfig governs C9/C11.
type TimersConfig struct {
	MinResolution time.Duration `yaml:"min_resolution"`
	MaxSleep      time.Duration `yaml:"max_sleep"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// Default returns the configuration cmd/gotsc falls back to when no file is
// given, matching spec.md §4.10's own numeric defaults (1ms-60s sleep cap).
func Default() *Config {
	return &Config{
		Arena:     ArenaConfig{InitialReserveBytes: 64 * 1024},
		Scheduler: SchedulerConfig{Workers: 0, QueueSize: 1024},
		Timers:    TimersConfig{MinResolution: time.Millisecond, MaxSleep: 60 * time.Second},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		Metrics:   MetricsConfig{Addr: ":9090", Enabled: true},
	}
}

// Load reads path, falling back to Default() if path is empty, applies
// environment overrides, and validates. Mirrors the teacher's
// internal/config.Load shape (50-mini-service-all-features,
// 38-config-loader-env-yaml).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GOTS_SCHEDULER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.Workers = n
		}
	}
	if v := os.Getenv("GOTS_SCHEDULER_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.QueueSize = n
		}
	}
	if v := os.Getenv("GOTS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GOTS_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

func (c *Config) Validate() error {
	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("scheduler.workers must be >= 0 (0 = GOMAXPROCS)")
	}
	if c.Scheduler.QueueSize <= 0 {
		return fmt.Errorf("scheduler.queue_size must be > 0")
	}
	if c.Timers.MinResolution <= 0 {
		return fmt.Errorf("timers.min_resolution must be > 0")
	}
	if c.Timers.MaxSleep < c.Timers.MinResolution {
		return fmt.Errorf("timers.max_sleep must be >= timers.min_resolution")
	}
	return nil
}
