package testsupport

import (
	"testing"

	"mediasort/internal/config"
	"mediasort/internal/index"
)

// MustOpenIndex opens a SQLite index for tests and registers cleanup.
func MustOpenIndex(t testing.TB, cfg *config.Config) *index.SQLiteIndex {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	idx, err := index.OpenPath(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("index.OpenPath: %v", err)
	}
	t.Cleanup(func() {
		idx.Close()
	})
	return idx
}
