package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mediasort/internal/classify"
)

func newResetCommand(cmdCtx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the duplicate index and the archive directories it manages",
		Long: "Reset deletes every index record and session, then removes the\n" +
			"archive directories mediasort manages (PHOTO, VIDEO, the duplicate\n" +
			"buckets, and ToReview). Anything else under the destination is left\n" +
			"untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			if !force {
				ok, err := confirm(cmd, "Delete all index records and managed archive directories?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Reset aborted")
					return nil
				}
			}

			idx, err := openIndex(cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			if err := idx.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("reset index: %w", err)
			}

			for _, dir := range classify.ManagedDirs() {
				target := filepath.Join(cfg.Paths.Destination, dir)
				if err := os.RemoveAll(target); err != nil {
					return fmt.Errorf("remove %s: %w", target, err)
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Index and managed archive directories cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	return cmd
}
