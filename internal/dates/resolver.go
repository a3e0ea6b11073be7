package dates

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"mediasort/internal/logging"
	"mediasort/internal/media"
)

// Date is a resolved capture year and month.
type Date struct {
	Year  int
	Month time.Month
}

// Resolver produces a capture date for a candidate file. Implementations
// never return an error: unreadable or corrupt metadata degrades to a
// not-ok result, which routes the file to the review bucket.
type Resolver interface {
	Resolve(path string, mediaType media.Type) (Date, bool)
}

// filenamePattern matches YYYYMMDD, YYYY-MM-DD, and YYYY_MM_DD fragments
// anywhere in a basename, e.g. IMG_20230401_102455.jpg.
var filenamePattern = regexp.MustCompile(`(\d{4})[-_]?(\d{2})[-_]?(\d{2})`)

// MetadataResolver reads EXIF capture dates from photos and falls back to
// filename patterns for everything else.
type MetadataResolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *MetadataResolver {
	return &MetadataResolver{logger: logging.NewComponentLogger(logger, "dates")}
}

func (r *MetadataResolver) Resolve(path string, mediaType media.Type) (Date, bool) {
	if mediaType == media.TypePhoto {
		if date, ok := r.exifDate(path); ok {
			return date, true
		}
	}
	return FromFilename(filepath.Base(path))
}

func (r *MetadataResolver) exifDate(path string) (Date, bool) {
	file, err := os.Open(path)
	if err != nil {
		r.logger.Debug("exif open failed", logging.String("path", path), logging.Error(err))
		return Date{}, false
	}
	defer file.Close()

	meta, err := exif.Decode(file)
	if err != nil {
		r.logger.Debug("exif decode failed", logging.String("path", path), logging.Error(err))
		return Date{}, false
	}
	taken, err := meta.DateTime()
	if err != nil {
		return Date{}, false
	}
	date := Date{Year: taken.Year(), Month: taken.Month()}
	if !plausible(date) {
		return Date{}, false
	}
	return date, true
}

// FromFilename extracts a date from a basename using the shared pattern.
// Implausible matches (month 13, year 0412) are rejected so version strings
// and serial numbers do not masquerade as dates.
func FromFilename(name string) (Date, bool) {
	match := filenamePattern.FindStringSubmatch(name)
	if match == nil {
		return Date{}, false
	}
	year, _ := strconv.Atoi(match[1])
	month, _ := strconv.Atoi(match[2])
	day, _ := strconv.Atoi(match[3])
	date := Date{Year: year, Month: time.Month(month)}
	if !plausible(date) || day < 1 || day > 31 {
		return Date{}, false
	}
	return date, true
}

func plausible(d Date) bool {
	if d.Month < time.January || d.Month > time.December {
		return false
	}
	return d.Year >= 1900 && d.Year <= time.Now().Year()+1
}
