package preflight_test

import (
	"os"
	"path/filepath"
	"testing"

	"mediasort/internal/preflight"
	"mediasort/internal/testsupport"
)

func TestRunAllPassesForFreshConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.Source, 0o755); err != nil {
		t.Fatalf("mkdir source: %v", err)
	}

	results := preflight.RunAll(cfg)
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, failed: %+v", failed)
	}
}

func TestCheckSourceMissing(t *testing.T) {
	result := preflight.CheckSourceReadable(filepath.Join(t.TempDir(), "absent"))
	if result.Passed {
		t.Fatal("missing source should fail")
	}
}

func TestCheckSourceIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if result := preflight.CheckSourceReadable(path); result.Passed {
		t.Fatal("regular file should fail the source check")
	}
}

func TestCheckDestinationCreatableUnderExistingAncestor(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "not", "yet", "created")
	result := preflight.CheckDestinationWritable(dest)
	if !result.Passed {
		t.Fatalf("creatable destination should pass: %+v", result)
	}
}

func TestCheckDistinctTrees(t *testing.T) {
	base := t.TempDir()
	cases := []struct {
		name   string
		source string
		dest   string
		passed bool
	}{
		{"identical", base, base, false},
		{"dest inside source", base, filepath.Join(base, "archive"), false},
		{"source inside dest", filepath.Join(base, "in"), base, false},
		{"siblings", filepath.Join(base, "in"), filepath.Join(base, "out"), true},
		{"shared prefix but distinct", filepath.Join(base, "in"), filepath.Join(base, "in-archive"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := preflight.CheckDistinctTrees(tc.source, tc.dest)
			if result.Passed != tc.passed {
				t.Fatalf("passed = %v, want %v (%s)", result.Passed, tc.passed, result.Detail)
			}
		})
	}
}
