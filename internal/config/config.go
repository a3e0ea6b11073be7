package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"mediasort/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directory layout for a run.
type Paths struct {
	Source      string `toml:"source"`
	Destination string `toml:"destination"`
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
}

// Extensions partitions the allowed file extensions by media type.
type Extensions struct {
	Photo []string `toml:"photo"`
	Video []string `toml:"video"`
}

// Scanner contains source-tree traversal settings.
type Scanner struct {
	ExcludeHidden   bool     `toml:"exclude_hidden"`
	ExcludePatterns []string `toml:"exclude_patterns"`
}

// Hashing contains content-hash settings.
type Hashing struct {
	BufferKiB int `toml:"buffer_kib"`
}

// Workers contains worker-pool sizing.
type Workers struct {
	Enabled            bool `toml:"enabled"`
	Count              int  `toml:"count"`
	CPUMultiplier      int  `toml:"cpu_multiplier"`
	MaxWorkers         int  `toml:"max_workers"`
	FileTimeoutSeconds int  `toml:"file_timeout_seconds"`
}

// Placement contains destination-write behavior.
type Placement struct {
	CopySource bool `toml:"copy_source"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mediasort.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Extensions Extensions `toml:"extensions"`
	Scanner    Scanner    `toml:"scanner"`
	Hashing    Hashing    `toml:"hashing"`
	Workers    Workers    `toml:"workers"`
	Placement  Placement  `toml:"placement"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the default config location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediasort/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "open", resolvedPath, err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "parse", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("mediasort.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"paths.source", &c.Paths.Source},
		{"paths.destination", &c.Paths.Destination},
		{"paths.data_dir", &c.Paths.DataDir},
		{"paths.log_dir", &c.Paths.LogDir},
	} {
		trimmed := strings.TrimSpace(*field.value)
		if trimmed == "" {
			*field.value = ""
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", field.name, err)
		}
		*field.value = expanded
	}

	c.Extensions.Photo = normalizeExtensions(c.Extensions.Photo)
	c.Extensions.Video = normalizeExtensions(c.Extensions.Video)

	patterns := make([]string, 0, len(c.Scanner.ExcludePatterns))
	for _, pattern := range c.Scanner.ExcludePatterns {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	c.Scanner.ExcludePatterns = patterns

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func normalizeExtensions(values []string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.Destination, c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the durable duplicate index.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "mediasort.db")
}

// LockPath returns the location of the run lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "mediasort.lock")
}

// LogPath returns the location of the run log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "mediasort.log")
}

// HashBufferSize returns the hashing read-buffer size in bytes.
func (c *Config) HashBufferSize() int {
	return c.Hashing.BufferKiB * 1024
}

// Snapshot serializes the run-relevant configuration for session records.
func (c *Config) Snapshot() string {
	snapshot := struct {
		Source          string   `json:"source"`
		Destination     string   `json:"destination"`
		PhotoExtensions []string `json:"photo_extensions"`
		VideoExtensions []string `json:"video_extensions"`
		Workers         int      `json:"workers"`
		CopySource      bool     `json:"copy_source"`
	}{
		Source:          c.Paths.Source,
		Destination:     c.Paths.Destination,
		PhotoExtensions: c.Extensions.Photo,
		VideoExtensions: c.Extensions.Video,
		Workers:         c.WorkerCount(),
		CopySource:      c.Placement.CopySource,
	}
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
