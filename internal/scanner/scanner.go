package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"mediasort/internal/logging"
	"mediasort/internal/media"
)

// Scanner walks the source tree and yields candidate files. It holds no
// state across walks; the same scanner can drive repeated passes.
type Scanner struct {
	root            string
	registry        *media.Registry
	excludeHidden   bool
	excludePatterns []string
	logger          *slog.Logger
}

// Summary reports what a single walk saw.
type Summary struct {
	Candidates  int
	Skipped     int
	Unsupported int
	ScanErrors  int
}

// New constructs a scanner rooted at an absolute source directory.
func New(root string, registry *media.Registry, excludeHidden bool, excludePatterns []string, logger *slog.Logger) *Scanner {
	return &Scanner{
		root:            root,
		registry:        registry,
		excludeHidden:   excludeHidden,
		excludePatterns: excludePatterns,
		logger:          logging.NewComponentLogger(logger, "scanner"),
	}
}

// Walk traverses the tree depth-first and invokes yield for every supported
// file. Unreadable entries and broken symlinks are counted as scan errors
// and skipped; they never abort the walk. The walk stops early when ctx is
// canceled or yield returns false.
func (s *Scanner) Walk(ctx context.Context, yield func(media.Candidate) bool) (Summary, error) {
	var summary Summary
	err := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if walkErr != nil {
			summary.ScanErrors++
			s.logger.Warn("scan entry unreadable", logging.String("path", path), logging.Error(walkErr))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := entry.Name()
		if entry.IsDir() {
			if path != s.root && s.shouldSkipDir(name, path) {
				summary.Skipped++
				return filepath.SkipDir
			}
			return nil
		}

		if s.matchesExcludePattern(path) {
			summary.Skipped++
			return nil
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			// Broken symlinks stat with an error; valid ones are skipped
			// outright so the walk never escapes the root.
			if _, statErr := filepath.EvalSymlinks(path); statErr != nil {
				summary.ScanErrors++
				s.logger.Warn("broken symlink skipped", logging.String("path", path))
			} else {
				summary.Skipped++
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			summary.Skipped++
			return nil
		}

		mediaType, supported := s.registry.Detect(path)
		if !supported {
			summary.Unsupported++
			return nil
		}

		summary.Candidates++
		if !yield(media.Candidate{Path: path, Type: mediaType}) {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return summary, err
	}
	return summary, ctx.Err()
}

func (s *Scanner) shouldSkipDir(name, path string) bool {
	if s.excludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	return s.matchesExcludePattern(path)
}

func (s *Scanner) matchesExcludePattern(path string) bool {
	for _, pattern := range s.excludePatterns {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}
