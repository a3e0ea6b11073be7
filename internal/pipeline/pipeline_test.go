package pipeline_test

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"mediasort/internal/config"
	"mediasort/internal/index"
	"mediasort/internal/logging"
	"mediasort/internal/pipeline"
	"mediasort/internal/testsupport"
)

func runPipeline(t *testing.T, cfg *config.Config, idx index.Index, dryRun bool) *pipeline.Result {
	t.Helper()
	result, err := pipeline.New(cfg, idx, logging.NewNop(), dryRun).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return result
}

func countFilesUnder(t *testing.T, root string) int {
	t.Helper()
	count := 0
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipAll
			}
			return err
		}
		if entry.Type().IsRegular() {
			count++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return count
}

func TestRunOrganizesDatedPhotoAndItsCopy(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(4))
	idx := testsupport.MustOpenIndex(t, cfg)

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "IMG_20230401_102455.jpg"), 2048)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "backup", "IMG_20230401_102455.jpg"), 2048)

	result := runPipeline(t, cfg, idx, false)

	if result.Counters.Seen != 2 {
		t.Fatalf("seen = %d, want 2", result.Counters.Seen)
	}
	if result.Counters.Organized != 1 || result.Counters.Duplicates != 1 {
		t.Fatalf("organized/duplicates = %d/%d, want 1/1",
			result.Counters.Organized, result.Counters.Duplicates)
	}

	datedDir := filepath.Join(cfg.Paths.Destination, "PHOTO", "2023", "04")
	if got := countFilesUnder(t, datedDir); got != 1 {
		t.Fatalf("dated dir holds %d files, want 1", got)
	}
	dupDir := filepath.Join(cfg.Paths.Destination, "PHOTO_DUPLICATES")
	if got := countFilesUnder(t, dupDir); got != 1 {
		t.Fatalf("duplicate dir holds %d files, want 1", got)
	}
	if got := countFilesUnder(t, cfg.Paths.Source); got != 0 {
		t.Fatalf("source still holds %d files after move", got)
	}

	records, err := idx.Records(context.Background())
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	var dup *index.FileRecord
	for _, rec := range records {
		if rec.Status == index.StatusDuplicate {
			dup = rec
		}
	}
	if dup == nil {
		t.Fatal("no duplicate record")
	}
	if dup.RefPath == "" {
		t.Fatal("duplicate record should reference the winning destination")
	}
}

func TestRunDatelessPhotoGoesToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	idx := testsupport.MustOpenIndex(t, cfg)

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "scan.jpg"), 512)

	result := runPipeline(t, cfg, idx, false)

	if result.Counters.Review != 1 {
		t.Fatalf("review = %d, want 1", result.Counters.Review)
	}
	reviewed := filepath.Join(cfg.Paths.Destination, "ToReview", "PHOTO", "scan.jpg")
	if _, err := os.Stat(reviewed); err != nil {
		t.Fatalf("review destination missing: %v", err)
	}

	records, err := idx.Records(context.Background())
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 1 || records[0].Status != index.StatusReview {
		t.Fatalf("expected one review record, got %+v", records)
	}
	if records[0].Year != 0 || records[0].Month != 0 {
		t.Fatalf("review record should carry no date, got %d/%d", records[0].Year, records[0].Month)
	}
}

func TestRunVideoLandsInVideoBucket(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	idx := testsupport.MustOpenIndex(t, cfg)

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "VID_2022-01-15.mp4"), 4096)

	result := runPipeline(t, cfg, idx, false)

	if result.Counters.Organized != 1 {
		t.Fatalf("organized = %d, want 1", result.Counters.Organized)
	}
	dest := filepath.Join(cfg.Paths.Destination, "VIDEO", "2022", "01", "VID_2022-01-15.mp4")
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("video destination missing: %v", err)
	}
}

func TestRunExactlyOneWinnerAcrossWorkers(t *testing.T) {
	for workers := 1; workers <= 16; workers++ {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithWorkers(workers))
			idx := testsupport.MustOpenIndex(t, cfg)

			const copies = 12
			for i := 0; i < copies; i++ {
				name := fmt.Sprintf("dir%d/IMG_20230401_%03d.jpg", i, i)
				testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, name), 1024)
			}

			result := runPipeline(t, cfg, idx, false)

			if result.Counters.Organized != 1 {
				t.Fatalf("organized = %d, want exactly 1", result.Counters.Organized)
			}
			if result.Counters.Duplicates != copies-1 {
				t.Fatalf("duplicates = %d, want %d", result.Counters.Duplicates, copies-1)
			}
		})
	}
}

func TestRunDistinctContentSameNameGetsSuffix(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	idx := testsupport.MustOpenIndex(t, cfg)

	testsupport.WriteString(t, filepath.Join(cfg.Paths.Source, "a", "IMG_20230401.jpg"), "first shot")
	testsupport.WriteString(t, filepath.Join(cfg.Paths.Source, "b", "IMG_20230401.jpg"), "second shot")

	result := runPipeline(t, cfg, idx, false)

	if result.Counters.Organized != 2 {
		t.Fatalf("organized = %d, want 2 (distinct content is not a duplicate)", result.Counters.Organized)
	}
	datedDir := filepath.Join(cfg.Paths.Destination, "PHOTO", "2023", "04")
	if got := countFilesUnder(t, datedDir); got != 2 {
		t.Fatalf("dated dir holds %d files, want 2 distinct names", got)
	}
}

func TestRunIsIdempotentAcrossSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	idx := testsupport.MustOpenIndex(t, cfg)

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "IMG_20230401.jpg"), 1024)
	first := runPipeline(t, cfg, idx, false)
	if first.Counters.Organized != 1 {
		t.Fatalf("first run organized = %d, want 1", first.Counters.Organized)
	}

	// A byte-identical copy arriving later resolves against the durable
	// index, not against this session.
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "IMG_20230401.jpg"), 1024)
	second := runPipeline(t, cfg, idx, false)
	if second.Counters.Organized != 0 {
		t.Fatalf("second run organized = %d, want 0", second.Counters.Organized)
	}
	if second.Counters.Duplicates != 1 {
		t.Fatalf("second run duplicates = %d, want 1", second.Counters.Duplicates)
	}
}

func TestRunDatelessCopyResolvesAgainstReviewRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	idx := testsupport.MustOpenIndex(t, cfg)

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "scan.jpg"), 777)
	first := runPipeline(t, cfg, idx, false)
	if first.Counters.Review != 1 {
		t.Fatalf("first run review = %d, want 1", first.Counters.Review)
	}

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "scan.jpg"), 777)
	second := runPipeline(t, cfg, idx, false)
	if second.Counters.Duplicates != 1 {
		t.Fatalf("re-ingested review file should be a duplicate, got %+v", second.Counters)
	}
	if second.Counters.Review != 0 {
		t.Fatalf("second run review = %d, want 0", second.Counters.Review)
	}
}

func TestDryRunComputesOutcomesWithoutWriting(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(4))

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "IMG_20230401.jpg"), 1024)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "copy", "IMG_20230401.jpg"), 1024)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "scan.jpg"), 99)

	result := runPipeline(t, cfg, index.NewMemoryIndex(), true)

	if result.Counters.Organized != 1 || result.Counters.Duplicates != 1 || result.Counters.Review != 1 {
		t.Fatalf("dry run counters = %+v, want 1 organized, 1 duplicate, 1 review", result.Counters)
	}
	if got := countFilesUnder(t, cfg.Paths.Source); got != 3 {
		t.Fatalf("dry run moved source files, %d remain", got)
	}
	if got := countFilesUnder(t, cfg.Paths.Destination); got != 0 {
		t.Fatalf("dry run wrote %d files into the destination", got)
	}
}

func TestRunCanceledContextFinishesPartial(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "IMG_20230401.jpg"), 1024)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx := index.NewMemoryIndex()
	result, err := pipeline.New(cfg, idx, logging.NewNop(), true).Run(ctx)
	if err != nil {
		t.Fatalf("canceled run should still finalize: %v", err)
	}
	if !result.Partial {
		t.Fatal("canceled run must be marked partial")
	}

	stats, err := idx.Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.LastSession == nil || !stats.LastSession.Partial {
		t.Fatal("session row should record the partial stop")
	}
}

func TestResetThenRerunReproducesOutcomes(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2), testsupport.WithCopySource())
	idx := testsupport.MustOpenIndex(t, cfg)

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "IMG_20230401.jpg"), 1024)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.Source, "copy", "IMG_20230401.jpg"), 1024)

	first := runPipeline(t, cfg, idx, false)

	if err := idx.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	for _, dir := range []string{"PHOTO", "PHOTO_DUPLICATES"} {
		if err := os.RemoveAll(filepath.Join(cfg.Paths.Destination, dir)); err != nil {
			t.Fatalf("clear %s: %v", dir, err)
		}
	}

	second := runPipeline(t, cfg, idx, false)
	if first.Counters.Organized != second.Counters.Organized ||
		first.Counters.Duplicates != second.Counters.Duplicates {
		t.Fatalf("outcomes differ after reset: %+v vs %+v", first.Counters, second.Counters)
	}
}
