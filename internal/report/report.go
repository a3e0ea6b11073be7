// Package report turns index contents into operator-facing output: a CSV
// export of every record and tabular statistics for the CLI.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mediasort/internal/index"
	"mediasort/internal/media"
)

var csvHeader = []string{
	"id", "hash", "source_path", "dest_path", "ref_path",
	"media_type", "year", "month", "status", "session_id", "created_at",
}

// ExportCSV streams every index record to w, oldest first.
func ExportCSV(ctx context.Context, idx index.Index, w io.Writer) error {
	records, err := idx.Records(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Hash,
			rec.SourcePath,
			rec.DestPath,
			rec.RefPath,
			string(rec.MediaType),
			formatOptionalInt(rec.Year),
			formatOptionalInt(rec.Month),
			string(rec.Status),
			rec.SessionID,
			rec.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", rec.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatOptionalInt(value int) string {
	if value == 0 {
		return ""
	}
	return strconv.Itoa(value)
}

var titleCaser = cases.Title(language.English)

// StatusRows renders per-status counts as label/count pairs, stable order.
func StatusRows(stats index.Statistics) [][]string {
	statuses := make([]index.Status, 0, len(stats.PerStatus))
	for status := range stats.PerStatus {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })

	rows := make([][]string, 0, len(statuses)+1)
	for _, status := range statuses {
		rows = append(rows, []string{
			titleCaser.String(string(status)),
			strconv.Itoa(stats.PerStatus[status]),
		})
	}
	rows = append(rows, []string{"Total", strconv.Itoa(stats.TotalRecords)})
	return rows
}

// YearRows renders organized-per-year counts, newest year first.
func YearRows(stats index.Statistics) [][]string {
	years := make([]int, 0, len(stats.PerYear))
	for year := range stats.PerYear {
		years = append(years, year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	rows := make([][]string, 0, len(years))
	for _, year := range years {
		rows = append(rows, []string{strconv.Itoa(year), strconv.Itoa(stats.PerYear[year])})
	}
	return rows
}

// TypeRows renders organized-per-type counts, stable order.
func TypeRows(stats index.Statistics) [][]string {
	types := make([]string, 0, len(stats.PerType))
	for mediaType := range stats.PerType {
		types = append(types, string(mediaType))
	}
	sort.Strings(types)

	rows := make([][]string, 0, len(types))
	for _, mediaType := range types {
		rows = append(rows, []string{
			titleCaser.String(mediaType),
			strconv.Itoa(stats.PerType[media.Type(mediaType)]),
		})
	}
	return rows
}

// SessionSummary renders the most recent session as label/value pairs, or
// nil when no session has run.
func SessionSummary(stats index.Statistics) [][]string {
	session := stats.LastSession
	if session == nil {
		return nil
	}

	ended := "still running"
	if session.EndedAt != nil {
		ended = session.EndedAt.Format(time.RFC3339)
	}
	completion := "complete"
	if session.Partial {
		completion = "partial (stopped early)"
	}
	return [][]string{
		{"Session", session.ID},
		{"Started", session.StartedAt.Format(time.RFC3339)},
		{"Ended", ended},
		{"Completion", completion},
		{"Seen", strconv.FormatInt(session.Counters.Seen, 10)},
		{"Organized", strconv.FormatInt(session.Counters.Organized, 10)},
		{"Duplicates", strconv.FormatInt(session.Counters.Duplicates, 10)},
		{"Review", strconv.FormatInt(session.Counters.Review, 10)},
		{"Errors", strconv.FormatInt(session.Counters.Errors, 10)},
	}
}
