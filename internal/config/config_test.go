package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediasort/internal/config"
	"mediasort/internal/services"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Source = filepath.Join(base, "incoming")
	cfg.Paths.Destination = filepath.Join(base, "archive")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	return cfg
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	_, _, exists, err := config.Load(path)
	if exists {
		t.Fatal("expected missing config to report exists=false")
	}
	// Defaults alone fail validation: no source/destination.
	if err == nil {
		t.Fatal("expected validation error without paths")
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	base := t.TempDir()
	content := `
[paths]
source = "` + filepath.Join(base, "in") + `"
destination = "` + filepath.Join(base, "out") + `"
data_dir = "` + filepath.Join(base, "data") + `"
log_dir = "` + filepath.Join(base, "logs") + `"

[extensions]
photo = ["JPG", ".Jpeg"]
video = ["mp4"]
`
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected config to resolve, got exists=%v path=%q", exists, resolved)
	}
	if got := cfg.Extensions.Photo; len(got) != 2 || got[0] != ".jpg" || got[1] != ".jpeg" {
		t.Fatalf("expected lowercased dotted photo extensions, got %v", got)
	}
	if cfg.Hashing.BufferKiB != 64 {
		t.Fatalf("expected default hash buffer, got %d", cfg.Hashing.BufferKiB)
	}
}

func TestValidateRejectsOverlappingExtensionLists(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Extensions.Video = append(cfg.Extensions.Video, ".jpg")
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "both photo and video") {
		t.Fatalf("expected overlap error, got %v", err)
	}
}

func TestValidateRejectsZeroBuffer(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Hashing.BufferKiB = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected buffer validation error")
	}
}

func TestValidateErrorsCarryValidationMarker(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Paths.Source = ""
	if err := cfg.Validate(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestLoadMalformedFileIsConfigurationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[paths\nsource ="), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestWorkerCountRespectsCap(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Workers.Count = 64
	cfg.Workers.MaxWorkers = 8
	if got := cfg.WorkerCount(); got != 8 {
		t.Fatalf("expected cap of 8, got %d", got)
	}
}

func TestWorkerCountDisabledPoolIsSequential(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Workers.Enabled = false
	if got := cfg.WorkerCount(); got != 1 {
		t.Fatalf("expected single worker when disabled, got %d", got)
	}
}

func TestSnapshotIsJSON(t *testing.T) {
	cfg := baseConfig(t)
	snapshot := cfg.Snapshot()
	if !strings.Contains(snapshot, `"workers"`) || !strings.Contains(snapshot, cfg.Paths.Source) {
		t.Fatalf("unexpected snapshot %q", snapshot)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	if _, _, exists, err := config.Load(path); !exists {
		t.Fatalf("expected sample to exist and parse: exists=%v err=%v", exists, err)
	}
}
