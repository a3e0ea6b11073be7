package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mediasort/internal/media"
)

// MemoryIndex is an in-process Index used for dry runs. It enforces the same
// one-canonical-record-per-hash rule as the SQLite index so a dry run reports
// the exact outcomes a real run would produce, without touching the database.
type MemoryIndex struct {
	mu        sync.Mutex
	nextID    int64
	canonical map[string]*FileRecord
	records   []*FileRecord
	sessions  []*Session
}

// NewMemoryIndex returns an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{canonical: make(map[string]*FileRecord)}
}

// Claim attempts to register rec as the canonical record for its hash.
func (m *MemoryIndex) Claim(ctx context.Context, rec *FileRecord) (ClaimResult, error) {
	if rec == nil {
		return ClaimResult{}, errors.New("record is nil")
	}
	if !rec.Status.IsCanonical() {
		return ClaimResult{}, fmt.Errorf("claim requires a canonical status, got %q", rec.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if holder, ok := m.canonical[rec.Hash]; ok {
		return ClaimResult{Won: false, ExistingPath: holder.DestPath}, nil
	}
	m.append(rec)
	m.canonical[rec.Hash] = rec
	return ClaimResult{Won: true}, nil
}

// Record appends a non-canonical record.
func (m *MemoryIndex) Record(ctx context.Context, rec *FileRecord) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if rec.Status.IsCanonical() {
		return fmt.Errorf("canonical status %q must go through Claim", rec.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.append(rec)
	return nil
}

func (m *MemoryIndex) append(rec *FileRecord) {
	m.nextID++
	rec.ID = m.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.records = append(m.records, rec)
}

// Release removes the canonical record for hash.
func (m *MemoryIndex) Release(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	holder, ok := m.canonical[hash]
	if !ok {
		return nil
	}
	delete(m.canonical, hash)
	for i, rec := range m.records {
		if rec == holder {
			m.records = append(m.records[:i], m.records[i+1:]...)
			break
		}
	}
	return nil
}

// LookupHash returns the canonical record for a hash, or nil.
func (m *MemoryIndex) LookupHash(ctx context.Context, hash string) (*FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	holder, ok := m.canonical[hash]
	if !ok {
		return nil, nil
	}
	clone := *holder
	return &clone, nil
}

// Records returns a copy of every record, oldest first.
func (m *MemoryIndex) Records(ctx context.Context) ([]*FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*FileRecord, 0, len(m.records))
	for _, rec := range m.records {
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}

// StartSession registers a new open session.
func (m *MemoryIndex) StartSession(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("session is nil")
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, session)
	return nil
}

// FinishSession finalizes a session with its end time and totals.
func (m *MemoryIndex) FinishSession(ctx context.Context, id string, counters Counters, partial bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, session := range m.sessions {
		if session.ID == id {
			now := time.Now().UTC()
			session.EndedAt = &now
			session.Counters = counters
			session.Partial = partial
			return nil
		}
	}
	return fmt.Errorf("session %s not found", id)
}

// Statistics aggregates the in-memory state.
func (m *MemoryIndex) Statistics(ctx context.Context) (Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Statistics{
		TotalRecords: len(m.records),
		PerStatus:    make(map[Status]int),
		PerType:      make(map[media.Type]int),
		PerYear:      make(map[int]int),
	}
	for _, rec := range m.records {
		stats.PerStatus[rec.Status]++
		if rec.Status == StatusOrganized {
			stats.PerType[rec.MediaType]++
			if rec.Year != 0 {
				stats.PerYear[rec.Year]++
			}
		}
	}
	if n := len(m.sessions); n > 0 {
		clone := *m.sessions[n-1]
		stats.LastSession = &clone
	}
	return stats, nil
}

// Reset clears all records and sessions.
func (m *MemoryIndex) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID = 0
	m.canonical = make(map[string]*FileRecord)
	m.records = nil
	m.sessions = nil
	return nil
}

// Close is a no-op for the in-memory index.
func (m *MemoryIndex) Close() error { return nil }
