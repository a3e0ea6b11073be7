package report_test

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"mediasort/internal/index"
	"mediasort/internal/media"
	"mediasort/internal/report"
)

func seedIndex(t *testing.T) *index.MemoryIndex {
	t.Helper()
	ctx := context.Background()
	idx := index.NewMemoryIndex()

	if _, err := idx.Claim(ctx, &index.FileRecord{
		Hash: "h1", SourcePath: "/in/a.jpg", DestPath: "/out/PHOTO/2023/04/a.jpg",
		MediaType: media.TypePhoto, Year: 2023, Month: 4,
		Status: index.StatusOrganized, SessionID: "s1",
	}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := idx.Record(ctx, &index.FileRecord{
		Hash: "h1", SourcePath: "/in/b.jpg", DestPath: "/out/PHOTO_DUPLICATES/b.jpg",
		RefPath: "/out/PHOTO/2023/04/a.jpg", MediaType: media.TypePhoto,
		Status: index.StatusDuplicate, SessionID: "s1",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	return idx
}

func TestExportCSV(t *testing.T) {
	idx := seedIndex(t)

	var buf strings.Builder
	if err := report.ExportCSV(context.Background(), idx, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("parse exported csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "hash" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][8] != "organized" || rows[2][8] != "duplicate" {
		t.Fatalf("unexpected statuses: %q, %q", rows[1][8], rows[2][8])
	}
	if rows[2][4] != "/out/PHOTO/2023/04/a.jpg" {
		t.Fatalf("duplicate row should carry ref_path, got %q", rows[2][4])
	}
	if rows[2][6] != "" {
		t.Fatalf("dateless row should export an empty year, got %q", rows[2][6])
	}
}

func TestStatusRowsIncludeTotal(t *testing.T) {
	idx := seedIndex(t)
	stats, err := idx.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}

	rows := report.StatusRows(stats)
	if len(rows) != 3 {
		t.Fatalf("expected 2 statuses + total, got %d rows", len(rows))
	}
	last := rows[len(rows)-1]
	if last[0] != "Total" || last[1] != "2" {
		t.Fatalf("unexpected total row: %v", last)
	}
	if rows[0][0] != "Duplicate" {
		t.Fatalf("rows should be sorted and title-cased, got %v", rows[0])
	}
}

func TestYearRowsNewestFirst(t *testing.T) {
	stats := index.Statistics{PerYear: map[int]int{2019: 4, 2023: 7}}
	rows := report.YearRows(stats)
	if len(rows) != 2 || rows[0][0] != "2023" || rows[1][0] != "2019" {
		t.Fatalf("years not newest-first: %v", rows)
	}
}

func TestSessionSummary(t *testing.T) {
	if rows := report.SessionSummary(index.Statistics{}); rows != nil {
		t.Fatalf("no session should yield nil, got %v", rows)
	}

	ended := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	stats := index.Statistics{LastSession: &index.Session{
		ID:        "s1",
		StartedAt: ended.Add(-time.Minute),
		EndedAt:   &ended,
		Counters:  index.Counters{Seen: 3, Organized: 2, Duplicates: 1},
		Partial:   true,
	}}
	rows := report.SessionSummary(stats)
	if rows[0][1] != "s1" {
		t.Fatalf("unexpected session id row: %v", rows[0])
	}
	found := false
	for _, row := range rows {
		if row[0] == "Completion" {
			found = true
			if !strings.Contains(row[1], "partial") {
				t.Fatalf("partial session should say so: %v", row)
			}
		}
	}
	if !found {
		t.Fatal("missing completion row")
	}
}
