package config

import (
	"errors"
	"fmt"

	"mediasort/internal/services"
)

// Validate ensures the configuration is usable. Filesystem-level safety
// checks (path overlap, permissions) live in the preflight package; this
// covers structural problems that make a run impossible to even plan.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validatePaths,
		c.validateExtensions,
		c.validateHashing,
		c.validateWorkers,
		c.validateLogging,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return fmt.Errorf("%w: %s", services.ErrValidation, err)
		}
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.Source == "" {
		return errors.New("paths.source must be set")
	}
	if c.Paths.Destination == "" {
		return errors.New("paths.destination must be set")
	}
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateExtensions() error {
	if len(c.Extensions.Photo) == 0 {
		return errors.New("extensions.photo must include at least one extension")
	}
	if len(c.Extensions.Video) == 0 {
		return errors.New("extensions.video must include at least one extension")
	}
	seen := map[string]struct{}{}
	for _, ext := range c.Extensions.Photo {
		seen[ext] = struct{}{}
	}
	for _, ext := range c.Extensions.Video {
		if _, ok := seen[ext]; ok {
			return fmt.Errorf("extension %q listed as both photo and video", ext)
		}
	}
	return nil
}

func (c *Config) validateHashing() error {
	if c.Hashing.BufferKiB <= 0 {
		return errors.New("hashing.buffer_kib must be positive")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count < 0 {
		return errors.New("workers.count must be >= 0 (0 selects auto-detect)")
	}
	if c.Workers.Enabled && c.Workers.Count == 0 {
		if c.Workers.CPUMultiplier <= 0 {
			return errors.New("workers.cpu_multiplier must be positive when auto-detecting")
		}
	}
	if c.Workers.MaxWorkers <= 0 {
		return errors.New("workers.max_workers must be positive")
	}
	if c.Workers.FileTimeoutSeconds < 0 {
		return errors.New("workers.file_timeout_seconds must be >= 0 (0 disables the timeout)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
