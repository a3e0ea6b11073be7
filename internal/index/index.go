package index

import "context"

// Index is the shared duplicate index: the single source of truth for
// "have we seen these bytes before". Implementations serialize concurrent
// mutation internally; callers never hold an external lock across a call.
type Index interface {
	// Claim atomically attempts to insert rec as the canonical record for
	// its hash. rec.Status must be canonical (organized or review). The
	// insert attempt is the claim: there is no separate existence check.
	// A lost race returns Won=false with the holder's destination.
	Claim(ctx context.Context, rec *FileRecord) (ClaimResult, error)

	// Record appends a non-canonical record (duplicate or error).
	Record(ctx context.Context, rec *FileRecord) error

	// Release removes the canonical record for hash. Used only when
	// placement fails after a won claim, so the index never names a
	// destination that does not physically exist.
	Release(ctx context.Context, hash string) error

	// LookupHash returns the canonical record for a hash, or nil.
	LookupHash(ctx context.Context, hash string) (*FileRecord, error)

	// Records returns every record, oldest first.
	Records(ctx context.Context) ([]*FileRecord, error)

	// StartSession persists a new open session.
	StartSession(ctx context.Context, session *Session) error

	// FinishSession finalizes a session with its end time and totals.
	FinishSession(ctx context.Context, id string, counters Counters, partial bool) error

	// Statistics aggregates the index for reporting.
	Statistics(ctx context.Context) (Statistics, error)

	// Reset clears all records and sessions.
	Reset(ctx context.Context) error

	Close() error
}
