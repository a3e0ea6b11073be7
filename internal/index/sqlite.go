package index

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mediasort/internal/media"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; existing databases must be reset to adopt the new schema.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// SQLiteIndex is the durable duplicate index backed by SQLite. The partial
// unique index on canonical hashes realizes the claim protocol; WAL mode and
// a busy timeout let worker goroutines claim concurrently.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	sqliteConstraintCode    = 19
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// OpenPath opens the index database at dbPath, creating it and its schema
// on first use. The parent directory must already exist.
func OpenPath(dbPath string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	idx := &SQLiteIndex{db: db, path: dbPath}
	if err := idx.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// Path returns the database file location.
func (s *SQLiteIndex) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteIndex) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteIndex) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'mediasort reset' or delete the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *SQLiteIndex) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func sqliteErrCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code(), true
	}
	return 0, false
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteErrCode(err); ok && code == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// Extended constraint codes embed the base code in the low byte
	// (SQLITE_CONSTRAINT_UNIQUE is 2067).
	if code, ok := sqliteErrCode(err); ok && code&0xff == sqliteConstraintCode {
		return strings.Contains(err.Error(), "UNIQUE")
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *SQLiteIndex) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

const recordColumns = "id, hash, source_path, dest_path, ref_path, media_type, year, month, status, session_id, created_at"

const insertRecordSQL = `INSERT INTO files (
    hash, source_path, dest_path, ref_path, media_type, year, month, status, session_id, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Claim attempts to insert rec as the canonical record for its hash. The
// insert either succeeds (the claim is won) or trips the canonical unique
// index, which is the defined lost-race signal, not an error.
func (s *SQLiteIndex) Claim(ctx context.Context, rec *FileRecord) (ClaimResult, error) {
	if rec == nil {
		return ClaimResult{}, errors.New("record is nil")
	}
	if !rec.Status.IsCanonical() {
		return ClaimResult{}, fmt.Errorf("claim requires a canonical status, got %q", rec.Status)
	}

	if err := s.insertRecord(ctx, rec); err != nil {
		if isUniqueViolation(err) {
			holder, lookupErr := s.LookupHash(ctx, rec.Hash)
			if lookupErr != nil {
				return ClaimResult{}, fmt.Errorf("resolve claim holder: %w", lookupErr)
			}
			if holder == nil {
				// The holder was released between our insert and lookup;
				// surface as transient so the caller can retry the file.
				return ClaimResult{}, errors.New("claim holder vanished during lookup")
			}
			return ClaimResult{Won: false, ExistingPath: holder.DestPath}, nil
		}
		return ClaimResult{}, fmt.Errorf("claim insert: %w", err)
	}
	return ClaimResult{Won: true}, nil
}

// Record appends a non-canonical record.
func (s *SQLiteIndex) Record(ctx context.Context, rec *FileRecord) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if rec.Status.IsCanonical() {
		return fmt.Errorf("canonical status %q must go through Claim", rec.Status)
	}
	if err := s.insertRecord(ctx, rec); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) insertRecord(ctx context.Context, rec *FileRecord) error {
	now := rec.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	res, err := s.execWithRetry(
		ctx,
		insertRecordSQL,
		rec.Hash,
		rec.SourcePath,
		rec.DestPath,
		nullableString(rec.RefPath),
		string(rec.MediaType),
		nullableInt(rec.Year),
		nullableInt(rec.Month),
		string(rec.Status),
		rec.SessionID,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = now
	return nil
}

// Release deletes the canonical record for hash.
func (s *SQLiteIndex) Release(ctx context.Context, hash string) error {
	_, err := s.execWithRetry(
		ctx,
		`DELETE FROM files WHERE hash = ? AND status IN (?, ?)`,
		hash, StatusOrganized, StatusReview,
	)
	if err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// LookupHash returns the canonical record for a hash, or nil when the hash
// has not been claimed.
func (s *SQLiteIndex) LookupHash(ctx context.Context, hash string) (*FileRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+recordColumns+` FROM files WHERE hash = ? AND status IN (?, ?) LIMIT 1`,
		hash, StatusOrganized, StatusReview,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup hash: %w", err)
	}
	return rec, nil
}

// Records returns every record ordered by insertion.
func (s *SQLiteIndex) Records(ctx context.Context) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM files ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// StartSession persists a new open session row.
func (s *SQLiteIndex) StartSession(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("session is nil")
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO sessions (id, started_at, config_snapshot) VALUES (?, ?, ?)`,
		session.ID,
		session.StartedAt.Format(time.RFC3339Nano),
		session.ConfigSnapshot,
	)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// FinishSession finalizes a session with its end time and totals.
func (s *SQLiteIndex) FinishSession(ctx context.Context, id string, counters Counters, partial bool) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE sessions
         SET ended_at = ?, seen = ?, organized = ?, duplicates = ?, review = ?, errors = ?, partial = ?
         WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		counters.Seen,
		counters.Organized,
		counters.Duplicates,
		counters.Review,
		counters.Errors,
		boolToInt(partial),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// Statistics aggregates record and session state for reporting.
func (s *SQLiteIndex) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{
		PerStatus: make(map[Status]int),
		PerType:   make(map[media.Type]int),
		PerYear:   make(map[int]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM files GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("status counts: %w", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.PerStatus[Status(status)] = count
		stats.TotalRecords += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return stats, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT media_type, COUNT(1) FROM files WHERE status = ? GROUP BY media_type`, StatusOrganized)
	if err != nil {
		return stats, fmt.Errorf("type counts: %w", err)
	}
	for rows.Next() {
		var mediaType string
		var count int
		if err := rows.Scan(&mediaType, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.PerType[media.Type(mediaType)] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return stats, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT year, COUNT(1) FROM files WHERE year IS NOT NULL AND status = ? GROUP BY year`, StatusOrganized)
	if err != nil {
		return stats, fmt.Errorf("year counts: %w", err)
	}
	for rows.Next() {
		var year, count int
		if err := rows.Scan(&year, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.PerYear[year] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return stats, err
	}
	rows.Close()

	last, err := s.lastSession(ctx)
	if err != nil {
		return stats, err
	}
	stats.LastSession = last
	return stats, nil
}

func (s *SQLiteIndex) lastSession(ctx context.Context) (*Session, error) {
	// Order by rowid, not started_at: RFC3339Nano trims trailing zeros, so
	// the timestamp strings do not sort chronologically at sub-second
	// resolution.
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, config_snapshot, seen, organized, duplicates, review, errors, partial
         FROM sessions ORDER BY rowid DESC LIMIT 1`)

	var (
		session    Session
		startedRaw string
		endedRaw   sql.NullString
		partial    int
	)
	err := row.Scan(
		&session.ID, &startedRaw, &endedRaw, &session.ConfigSnapshot,
		&session.Counters.Seen, &session.Counters.Organized,
		&session.Counters.Duplicates, &session.Counters.Review,
		&session.Counters.Errors, &partial,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last session: %w", err)
	}
	if started, parseErr := time.Parse(time.RFC3339Nano, startedRaw); parseErr == nil {
		session.StartedAt = started
	}
	if endedRaw.Valid {
		if ended, parseErr := time.Parse(time.RFC3339Nano, endedRaw.String); parseErr == nil {
			session.EndedAt = &ended
		}
	}
	session.Partial = partial != 0
	return &session, nil
}

// Reset removes all records and sessions.
func (s *SQLiteIndex) Reset(ctx context.Context) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM files`); err != nil {
		return fmt.Errorf("clear files: %w", err)
	}
	if _, err := s.execWithRetry(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*FileRecord, error) {
	var (
		id         int64
		hash       string
		sourcePath string
		destPath   string
		refPath    sql.NullString
		mediaType  string
		year       sql.NullInt64
		month      sql.NullInt64
		statusStr  string
		sessionID  string
		createdRaw string
	)
	if err := scanner.Scan(
		&id, &hash, &sourcePath, &destPath, &refPath,
		&mediaType, &year, &month, &statusStr, &sessionID, &createdRaw,
	); err != nil {
		return nil, err
	}

	rec := &FileRecord{
		ID:         id,
		Hash:       hash,
		SourcePath: sourcePath,
		DestPath:   destPath,
		RefPath:    refPath.String,
		MediaType:  media.Type(mediaType),
		Status:     Status(statusStr),
		SessionID:  sessionID,
	}
	if year.Valid {
		rec.Year = int(year.Int64)
	}
	if month.Valid {
		rec.Month = int(month.Int64)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		rec.CreatedAt = created
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
