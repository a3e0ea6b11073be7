// Package classify maps a processed file's outcome to its destination
// inside the archive. It is pure path arithmetic: no filesystem access, no
// index access, so the same inputs always produce the same relative path.
package classify

import (
	"fmt"
	"path/filepath"

	"mediasort/internal/dates"
	"mediasort/internal/index"
	"mediasort/internal/media"
)

const (
	// ReviewDir holds files whose capture date could not be resolved.
	ReviewDir = "ToReview"
	// duplicateSuffix is appended to a type bucket for losing copies.
	duplicateSuffix = "_DUPLICATES"
)

// Placement pairs a destination path, relative to the archive root, with the
// status recorded for it.
type Placement struct {
	RelPath string
	Status  index.Status
}

// Canonical returns the placement for a file that holds (or is about to
// contend for) the claim on its hash. Dated files land in
// BUCKET/YYYY/MM/basename; dateless files go to review.
func Canonical(mediaType media.Type, date dates.Date, dated bool, basename string) Placement {
	bucket := mediaType.Bucket()
	if dated {
		return Placement{
			RelPath: filepath.Join(bucket, fmt.Sprintf("%04d", date.Year), fmt.Sprintf("%02d", int(date.Month)), basename),
			Status:  index.StatusOrganized,
		}
	}
	return Placement{
		RelPath: filepath.Join(ReviewDir, bucket, basename),
		Status:  index.StatusReview,
	}
}

// Duplicate returns the placement for a file that lost the claim on its
// hash.
func Duplicate(mediaType media.Type, basename string) Placement {
	return Placement{
		RelPath: filepath.Join(mediaType.Bucket()+duplicateSuffix, basename),
		Status:  index.StatusDuplicate,
	}
}

// ManagedDirs lists the top-level archive directories the pipeline creates.
// Reset clears exactly these, never the whole destination.
func ManagedDirs() []string {
	return []string{
		media.TypePhoto.Bucket(),
		media.TypeVideo.Bucket(),
		media.TypePhoto.Bucket() + duplicateSuffix,
		media.TypeVideo.Bucket() + duplicateSuffix,
		ReviewDir,
	}
}
