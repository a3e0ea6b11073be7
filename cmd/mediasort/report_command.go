package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mediasort/internal/report"
)

func newReportCommand(cmdCtx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export every index record as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			idx, err := openIndex(cfg)
			if err != nil {
				return err
			}
			defer idx.Close()

			out := cmd.OutOrStdout()
			if target := strings.TrimSpace(outputPath); target != "" {
				file, err := os.Create(target)
				if err != nil {
					return fmt.Errorf("create report file: %w", err)
				}
				defer file.Close()
				if err := report.ExportCSV(cmd.Context(), idx, file); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote report to %s\n", target)
				return nil
			}
			return report.ExportCSV(cmd.Context(), idx, out)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the CSV to a file instead of stdout")
	return cmd
}
