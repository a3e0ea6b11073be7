// Package config loads, normalizes, and validates the TOML configuration
// driving a mediasort run. Load applies defaults, expands ~ in paths, and
// rejects structurally unusable configs before any component starts.
package config
