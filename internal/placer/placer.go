// Package placer plans collision-free destinations and physically relocates
// files into the archive. Planning is read-only against the filesystem;
// placing creates parent directories and moves (or copies) the source.
package placer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"mediasort/internal/logging"
	"mediasort/internal/services"
)

// Placer resolves final destinations and performs the relocation.
type Placer struct {
	root       string
	copySource bool
	dryRun     bool
	logger     *slog.Logger

	mu       sync.Mutex
	reserved map[string]struct{}
}

// Options configures a Placer.
type Options struct {
	// Root is the absolute destination root the archive lives under.
	Root string
	// CopySource leaves source files in place instead of moving them.
	CopySource bool
	// DryRun plans destinations but performs no filesystem writes.
	DryRun bool
	Logger *slog.Logger
}

func New(opts Options) *Placer {
	return &Placer{
		root:       opts.Root,
		copySource: opts.CopySource,
		dryRun:     opts.DryRun,
		logger:     logging.NewComponentLogger(opts.Logger, "placer"),
		reserved:   make(map[string]struct{}),
	}
}

// Plan resolves relPath to an absolute destination under the root, appending
// a hash-derived suffix when the plain name is taken. The chosen path is
// reserved so concurrent plans for the same basename never collide, and the
// filesystem is only read, never written.
func (p *Placer) Plan(relPath, hash string) (string, error) {
	plain := filepath.Join(p.root, relPath)
	if p.available(plain) {
		return plain, nil
	}

	ext := filepath.Ext(plain)
	stem := strings.TrimSuffix(plain, ext)
	suffix := hash
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}

	candidate := fmt.Sprintf("%s-%s%s", stem, suffix, ext)
	if p.available(candidate) {
		return candidate, nil
	}
	for n := 2; n < 10_000; n++ {
		candidate = fmt.Sprintf("%s-%s-%d%s", stem, suffix, n, ext)
		if p.available(candidate) {
			return candidate, nil
		}
	}
	return "", services.Wrap(services.ErrPlacement, "plan", "resolve collision",
		fmt.Sprintf("no free name for %s", relPath), nil)
}

func (p *Placer) available(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, taken := p.reserved[path]; taken {
		return false
	}
	if _, err := os.Lstat(path); err == nil {
		return false
	}
	p.reserved[path] = struct{}{}
	return true
}

var (
	renameFile   = os.Rename
	removeSource = os.Remove
)

// Place relocates src to dest. The default mode renames and falls back to
// copy-then-delete when src and dest live on different filesystems; copy
// mode always copies and leaves the source untouched. Any failure after
// bytes reached the destination removes the destination again, so the
// archive never holds a file the index does not name.
func (p *Placer) Place(ctx context.Context, src, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.dryRun {
		p.logger.Info("would place file",
			logging.String("source", src),
			logging.String("destination", dest))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrPlacement, "place", "create directories", dest, err)
	}

	if p.copySource {
		if err := copyFile(src, dest); err != nil {
			return services.Wrap(services.ErrPlacement, "place", "copy file", src, err)
		}
		return nil
	}

	err := renameFile(src, dest)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return services.Wrap(services.ErrPlacement, "place", "rename file", src, err)
	}

	// Destination is on a different filesystem; rename cannot cross it.
	if err := copyFile(src, dest); err != nil {
		return services.Wrap(services.ErrPlacement, "place", "copy across filesystems", src, err)
	}
	if err := removeSource(src); err != nil {
		// The move did not complete, so the copied destination must not
		// survive it: the claim will be released and the bytes stay where
		// they were.
		_ = os.Remove(dest)
		return services.Wrap(services.ErrPlacement, "place", "remove source after copy", src, err)
	}
	return nil
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return errors.Is(err, syscall.EXDEV)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return err
	}
	return nil
}
