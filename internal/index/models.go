package index

import (
	"time"

	"mediasort/internal/media"
)

// Status is the recorded outcome for a processed file.
type Status string

const (
	StatusOrganized Status = "organized"
	StatusDuplicate Status = "duplicate"
	StatusReview    Status = "review"
	StatusError     Status = "error"
)

// canonicalStatuses are the statuses that claim a content hash. At most one
// record per hash may carry one of them.
var canonicalStatuses = map[Status]struct{}{
	StatusOrganized: {},
	StatusReview:    {},
}

// IsCanonical reports whether a status claims ownership of its hash.
func (s Status) IsCanonical() bool {
	_, ok := canonicalStatuses[s]
	return ok
}

// FileRecord is the durable unit of record: one row per processed file,
// append-only once inserted.
type FileRecord struct {
	ID         int64
	Hash       string
	SourcePath string
	DestPath   string
	// RefPath names the winning destination when Status is duplicate.
	RefPath   string
	MediaType media.Type
	// Year and Month are zero when no capture date resolved.
	Year      int
	Month     int
	Status    Status
	SessionID string
	CreatedAt time.Time
}

// ClaimResult is the two-outcome result of an atomic claim. A lost claim is
// the defined way a worker learns another worker organized the same bytes
// first; it is never surfaced as an error.
type ClaimResult struct {
	Won bool
	// ExistingPath is the destination of the record that holds the claim;
	// set only when Won is false.
	ExistingPath string
}

// Counters aggregates per-outcome totals for a session.
type Counters struct {
	Seen       int64
	Organized  int64
	Duplicates int64
	Review     int64
	Errors     int64
}

// Session groups the records created during one pipeline invocation.
type Session struct {
	ID             string
	StartedAt      time.Time
	EndedAt        *time.Time
	ConfigSnapshot string
	Counters       Counters
	// Partial marks a session finalized after a cooperative stop; a later
	// run resumes by treating its recorded hashes as already claimed.
	Partial bool
}

// Statistics summarizes the whole index for reporting.
type Statistics struct {
	TotalRecords int
	PerStatus    map[Status]int
	PerType      map[media.Type]int
	PerYear      map[int]int
	LastSession  *Session
}
