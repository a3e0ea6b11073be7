package dates_test

import (
	"path/filepath"
	"testing"
	"time"

	"mediasort/internal/dates"
	"mediasort/internal/logging"
	"mediasort/internal/media"
	"mediasort/internal/testsupport"
)

func TestFromFilename(t *testing.T) {
	cases := []struct {
		name  string
		year  int
		month time.Month
		ok    bool
	}{
		{"IMG_20230401_102455.jpg", 2023, time.April, true},
		{"2019-12-24 dinner.mp4", 2019, time.December, true},
		{"clip_2021_06_05.mov", 2021, time.June, true},
		{"VID_20231301.mp4", 0, 0, false}, // month 13
		{"build-04121999.zip", 0, 0, false},
		{"holiday.jpg", 0, 0, false},
	}
	for _, tc := range cases {
		date, ok := dates.FromFilename(tc.name)
		if ok != tc.ok {
			t.Fatalf("%s: expected ok=%v, got %v", tc.name, tc.ok, ok)
		}
		if ok && (date.Year != tc.year || date.Month != tc.month) {
			t.Fatalf("%s: expected %d-%d, got %d-%d", tc.name, tc.year, tc.month, date.Year, date.Month)
		}
	}
}

func TestResolveFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	// Plain bytes carry no EXIF, so the resolver must fall through.
	path := filepath.Join(dir, "IMG_20230401_photo.jpg")
	testsupport.WriteFile(t, path, 64)

	resolver := dates.NewResolver(logging.NewNop())
	date, ok := resolver.Resolve(path, media.TypePhoto)
	if !ok {
		t.Fatal("expected filename fallback to resolve a date")
	}
	if date.Year != 2023 || date.Month != time.April {
		t.Fatalf("unexpected date %+v", date)
	}
}

func TestResolveDegradesToUnknown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.jpg")
	testsupport.WriteFile(t, path, 64)

	resolver := dates.NewResolver(logging.NewNop())
	if _, ok := resolver.Resolve(path, media.TypePhoto); ok {
		t.Fatal("expected dateless file to resolve as unknown")
	}
}

func TestResolveMissingFileIsNotAnError(t *testing.T) {
	resolver := dates.NewResolver(logging.NewNop())
	if _, ok := resolver.Resolve(filepath.Join(t.TempDir(), "gone.jpg"), media.TypePhoto); ok {
		t.Fatal("expected missing file to resolve as unknown")
	}
}
