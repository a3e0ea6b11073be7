package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderPairs renders label/value rows as a two-column table. Every table
// the CLI prints is this shape; numeric marks the value column as counts,
// which right-aligns it.
func renderPairs(labelHeader, valueHeader string, rows [][]string, numeric bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{labelHeader, valueHeader})

	for _, row := range rows {
		value := ""
		if len(row) > 1 {
			value = row[1]
		}
		tw.AppendRow(table.Row{row[0], value})
	}

	if numeric {
		tw.SetColumnConfigs([]table.ColumnConfig{{
			Number:      2,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		}})
	}
	return tw.Render()
}
