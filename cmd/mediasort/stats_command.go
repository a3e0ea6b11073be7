package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediasort/internal/report"
)

func newStatsCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show archive statistics from the duplicate index",
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

			stats, err := idx.Statistics(cmd.Context())
			if err != nil {
				return fmt.Errorf("load statistics: %w", err)
			}

			out := cmd.OutOrStdout()
			if stats.TotalRecords == 0 {
				fmt.Fprintln(out, "The index is empty; run `mediasort run` first")
				return nil
			}

			fmt.Fprintln(out, renderPairs("Status", "Files", report.StatusRows(stats), true))

			if typeRows := report.TypeRows(stats); len(typeRows) > 0 {
				fmt.Fprintln(out, renderPairs("Type", "Organized", typeRows, true))
			}
			if yearRows := report.YearRows(stats); len(yearRows) > 0 {
				fmt.Fprintln(out, renderPairs("Year", "Organized", yearRows, true))
			}
			if sessionRows := report.SessionSummary(stats); len(sessionRows) > 0 {
				fmt.Fprintln(out, renderPairs("Last Session", "", sessionRows, false))
			}
			return nil
		},
	}
}
