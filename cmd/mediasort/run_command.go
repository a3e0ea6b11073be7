package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"mediasort/internal/index"
	"mediasort/internal/logging"
	"mediasort/internal/pipeline"
	"mediasort/internal/preflight"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var dryRun bool
	var workers int
	var copySource bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan the source tree and organize media into the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if workers > 0 {
				cfg.Workers.Enabled = true
				cfg.Workers.Count = workers
			}
			if copySource {
				cfg.Placement.CopySource = true
			}

			if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
				for _, result := range failed {
					fmt.Fprintf(cmd.ErrOrStderr(), "preflight: %s: %s\n", result.Name, result.Detail)
				}
				return errors.New("preflight checks failed")
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			// A dry run must leave the destination untouched, so only a real
			// run creates the archive root. The data directory is always
			// needed for the lock.
			if dryRun {
				if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
					return fmt.Errorf("create data directory: %w", err)
				}
			} else if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return errors.New("another mediasort run is already in progress")
			}
			defer func() { _ = lock.Unlock() }()

			var idx index.Index
			if dryRun {
				idx = index.NewMemoryIndex()
			} else {
				sqlIdx, err := index.OpenPath(cfg.DatabasePath())
				if err != nil {
					return fmt.Errorf("open index: %w", err)
				}
				idx = sqlIdx
			}
			defer idx.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := pipeline.New(cfg, idx, logger, dryRun).Run(runCtx)
			if err != nil {
				return err
			}

			printRunSummary(cmd, result, dryRun)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute outcomes without moving files or touching the database")
	cmd.Flags().IntVar(&workers, "workers", 0, "Override the worker count for this run")
	cmd.Flags().BoolVar(&copySource, "copy", false, "Copy files into the archive instead of moving them")
	return cmd
}

func printRunSummary(cmd *cobra.Command, result *pipeline.Result, dryRun bool) {
	out := cmd.OutOrStdout()

	title := "Run complete"
	if dryRun {
		title = "Dry run complete (no files were moved)"
	}
	if result.Partial {
		title += " [stopped early]"
	}
	fmt.Fprintln(out, title)

	rows := [][]string{
		{"Seen", strconv.FormatInt(result.Counters.Seen, 10)},
		{"Organized", strconv.FormatInt(result.Counters.Organized, 10)},
		{"Duplicates", strconv.FormatInt(result.Counters.Duplicates, 10)},
		{"Review", strconv.FormatInt(result.Counters.Review, 10)},
		{"Errors", strconv.FormatInt(result.Counters.Errors, 10)},
		{"Unsupported", strconv.Itoa(result.Scan.Unsupported)},
		{"Skipped", strconv.Itoa(result.Scan.Skipped)},
		{"Elapsed", result.Elapsed.Round(timePrecision).String()},
	}
	fmt.Fprintln(out, renderPairs("Outcome", "Count", rows, true))
}
