// Package preflight provides readiness checks for the paths a run depends
// on. The run command executes RunAll before starting the pipeline; any
// failed check aborts the run before a single file is touched.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"mediasort/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckSourceReadable(cfg.Paths.Source),
		CheckDestinationWritable(cfg.Paths.Destination),
		CheckDistinctTrees(cfg.Paths.Source, cfg.Paths.Destination),
		CheckDataDirWritable(cfg.Paths.DataDir),
	}
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

// CheckSourceReadable verifies the source tree exists and can be traversed.
func CheckSourceReadable(path string) Result {
	const name = "Source directory"
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", path)}
}

// CheckDestinationWritable verifies the destination root can be written. A
// destination that does not exist yet passes when its nearest existing
// ancestor is writable, since the run creates it on demand.
func CheckDestinationWritable(path string) Result {
	return checkWritableOrCreatable("Destination directory", path)
}

// CheckDataDirWritable verifies the index database location can be written.
func CheckDataDirWritable(path string) Result {
	return checkWritableOrCreatable("Data directory", path)
}

func checkWritableOrCreatable(name, path string) Result {
	probe := path
	for {
		info, err := os.Stat(probe)
		if err == nil {
			if !info.IsDir() {
				return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s is not a directory)", path, probe)}
			}
			if err := unix.Access(probe, unix.W_OK|unix.X_OK); err != nil {
				return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions on %s: %v)", path, probe, err)}
			}
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (write ok)", path)}
		}
		if !os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing ancestor)", path)}
		}
		probe = parent
	}
}

// CheckDistinctTrees verifies the source and destination do not overlap.
// Ingesting into the tree being scanned would feed the pipeline its own
// output.
func CheckDistinctTrees(source, destination string) Result {
	const name = "Distinct trees"
	src := filepath.Clean(source)
	dest := filepath.Clean(destination)
	if src == dest {
		return Result{Name: name, Detail: "source and destination are the same directory"}
	}
	if isAncestor(src, dest) {
		return Result{Name: name, Detail: fmt.Sprintf("destination %s is inside source %s", dest, src)}
	}
	if isAncestor(dest, src) {
		return Result{Name: name, Detail: fmt.Sprintf("source %s is inside destination %s", src, dest)}
	}
	return Result{Name: name, Passed: true, Detail: "source and destination do not overlap"}
}

func isAncestor(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}
