package config

import (
	"runtime"
)

const (
	defaultHashBufferKiB = 64
	defaultCPUMultiplier = 2
	defaultMaxWorkers    = 16
)

// Default returns the baseline configuration before file overrides.
func Default() Config {
	return Config{
		Extensions: Extensions{
			Photo: []string{".jpg", ".jpeg", ".png", ".gif", ".heic", ".dng", ".arw", ".cr2", ".nef"},
			Video: []string{".mp4", ".mov", ".avi", ".mkv", ".m4v", ".mts"},
		},
		Scanner: Scanner{
			ExcludeHidden: true,
		},
		Hashing: Hashing{
			BufferKiB: defaultHashBufferKiB,
		},
		Workers: Workers{
			Enabled:       true,
			CPUMultiplier: defaultCPUMultiplier,
			MaxWorkers:    defaultMaxWorkers,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

// WorkerCount resolves the fixed pool size for a run: an explicit count wins,
// otherwise cores multiplied by the configured factor, capped by max_workers.
// A disabled pool processes sequentially with a single worker.
func (c *Config) WorkerCount() int {
	if !c.Workers.Enabled {
		return 1
	}
	if c.Workers.Count > 0 {
		if c.Workers.MaxWorkers > 0 && c.Workers.Count > c.Workers.MaxWorkers {
			return c.Workers.MaxWorkers
		}
		return c.Workers.Count
	}
	cores := runtime.NumCPU()
	if cores < 1 {
		cores = 1
	}
	workers := cores * c.Workers.CPUMultiplier
	if c.Workers.MaxWorkers > 0 && workers > c.Workers.MaxWorkers {
		workers = c.Workers.MaxWorkers
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}
