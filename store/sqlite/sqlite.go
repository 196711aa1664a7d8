/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements subsidy.TxStore and subsidy.ReportStore on one intervals table.
  The same queries port to PostgreSQL with minor dialect changes.

INTERFACES IMPLEMENTED:
  subsidy.Store:       Overlap lookup, most-recent lookup, cumulative counter
  subsidy.TxStore:     Store + WithTx
  subsidy.ReportStore: Filtered listing, lookup by id, status updates

KEY TABLE:
  intervals: Leave intervals and subsidy periods, discriminated by kind.
             Dates are stored as YYYY-MM-DD text so range predicates compare
             lexically.

INDEXES:
  - idx_intervals_subject_kind_start: Overlap lookup (hot path)
  - idx_intervals_subject_kind_end:   Most-recent lookup
  - idx_intervals_kind_status:        Reports

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The pool is capped at one connection
  so ":memory:" databases are shared between calls. Inside WithTx every
  query runs on the *sql.Tx; the parent *sql.DB is never touched.

USAGE:
  store, err := sqlite.New("./data/subsidy.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := subsidy.NewService(store, allocator, dailyRate)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - subsidy/store.go: Interface definitions
  - subsidy/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/warp/subsidy-engine/generic"
	"github.com/warp/subsidy-engine/subsidy"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ subsidy.TxStore     = (*Store)(nil)
	_ subsidy.ReportStore = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS intervals (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL CHECK (kind IN ('leave', 'subsidy')),
		subject_id TEXT NOT NULL,
		leave_id TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_days INTEGER NOT NULL,
		category TEXT NOT NULL,
		continuous INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		reimbursable INTEGER NOT NULL DEFAULT 0,
		max_filing_date TEXT,
		granted_date TEXT,
		created_at TEXT NOT NULL,
		CHECK (start_date <= end_date)
	);

	CREATE INDEX IF NOT EXISTS idx_intervals_subject_kind_start
		ON intervals(subject_id, kind, start_date);

	CREATE INDEX IF NOT EXISTS idx_intervals_subject_kind_end
		ON intervals(subject_id, kind, end_date DESC);

	CREATE INDEX IF NOT EXISTS idx_intervals_kind_status
		ON intervals(kind, status);

	CREATE INDEX IF NOT EXISTS idx_intervals_leave
		ON intervals(leave_id) WHERE leave_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const intervalColumns = `id, kind, subject_id, leave_id, start_date, end_date, total_days,
	category, continuous, status, reimbursable, max_filing_date, granted_date, created_at`

// live excludes intervals whose days were freed by a documentation rejection.
const liveClause = `status <> '` + string(subsidy.LeaveRejectedDocumentation) + `'`

// =============================================================================
// STORE (subsidy.Store interface)
// =============================================================================

func (s *Store) FindOverlapping(ctx context.Context, subjectID subsidy.SubjectID, kind subsidy.Kind, period generic.Period) ([]subsidy.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findOverlapping(ctx, s.db, subjectID, kind, period)
}

func findOverlapping(ctx context.Context, q querier, subjectID subsidy.SubjectID, kind subsidy.Kind, period generic.Period) ([]subsidy.Interval, error) {
	query := `
		SELECT ` + intervalColumns + `
		FROM intervals
		WHERE subject_id = ? AND kind = ? AND ` + liveClause + `
		  AND start_date <= ? AND end_date >= ?
		ORDER BY start_date ASC, id ASC
	`
	return queryIntervals(ctx, q, query, subjectID, kind, period.End.String(), period.Start.String())
}

func (s *Store) FindMostRecent(ctx context.Context, subjectID subsidy.SubjectID, kind subsidy.Kind) (*subsidy.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findMostRecent(ctx, s.db, subjectID, kind)
}

func findMostRecent(ctx context.Context, q querier, subjectID subsidy.SubjectID, kind subsidy.Kind) (*subsidy.Interval, error) {
	query := `
		SELECT ` + intervalColumns + `
		FROM intervals
		WHERE subject_id = ? AND kind = ? AND ` + liveClause + `
		ORDER BY end_date DESC, created_at DESC
		LIMIT 1
	`
	ivs, err := queryIntervals(ctx, q, query, subjectID, kind)
	if err != nil || len(ivs) == 0 {
		return nil, err
	}
	return &ivs[0], nil
}

func (s *Store) SumAcceptedDays(ctx context.Context, subjectID subsidy.SubjectID, excluding subsidy.IntervalID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sumAcceptedDays(ctx, s.db, subjectID, excluding)
}

func sumAcceptedDays(ctx context.Context, q querier, subjectID subsidy.SubjectID, excluding subsidy.IntervalID) (int, error) {
	var total int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_days), 0)
		FROM intervals
		WHERE subject_id = ? AND kind = ? AND status = ? AND id <> ?
	`, subjectID, subsidy.KindLeave, subsidy.LeaveAccepted, excluding).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum accepted days: %w", err)
	}
	return total, nil
}

// CreateMany inserts intervals of one kind in a single transaction.
func (s *Store) CreateMany(ctx context.Context, kind subsidy.Kind, intervals []subsidy.Interval) ([]subsidy.Interval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	created, err := createMany(ctx, sqlTx, kind, intervals)
	if err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return created, nil
}

func createMany(ctx context.Context, q querier, kind subsidy.Kind, intervals []subsidy.Interval) ([]subsidy.Interval, error) {
	query := `
		INSERT INTO intervals (` + intervalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	created := make([]subsidy.Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.ID == "" {
			iv.ID = subsidy.IntervalID(uuid.NewString())
		}
		iv.Kind = kind
		if iv.CreatedAt.IsZero() {
			iv.CreatedAt = now
		}

		_, err := q.ExecContext(ctx, query,
			iv.ID,
			iv.Kind,
			iv.SubjectID,
			nullString(string(iv.LeaveID)),
			iv.Period.Start.String(),
			iv.Period.End.String(),
			iv.TotalDays,
			iv.Category,
			iv.Continuous,
			iv.Status,
			iv.Reimbursable,
			nullDate(iv.MaxFilingDate),
			nullDate(iv.GrantedDate),
			iv.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return nil, subsidy.ErrDuplicateID
			}
			return nil, fmt.Errorf("failed to insert %s interval: %w", kind, err)
		}
		created = append(created, iv)
	}
	return created, nil
}

// =============================================================================
// TRANSACTIONAL STORE (subsidy.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store subsidy.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) FindOverlapping(ctx context.Context, subjectID subsidy.SubjectID, kind subsidy.Kind, period generic.Period) ([]subsidy.Interval, error) {
	return findOverlapping(ctx, ts.tx, subjectID, kind, period)
}

func (ts *txStore) FindMostRecent(ctx context.Context, subjectID subsidy.SubjectID, kind subsidy.Kind) (*subsidy.Interval, error) {
	return findMostRecent(ctx, ts.tx, subjectID, kind)
}

func (ts *txStore) SumAcceptedDays(ctx context.Context, subjectID subsidy.SubjectID, excluding subsidy.IntervalID) (int, error) {
	return sumAcceptedDays(ctx, ts.tx, subjectID, excluding)
}

func (ts *txStore) CreateMany(ctx context.Context, kind subsidy.Kind, intervals []subsidy.Interval) ([]subsidy.Interval, error) {
	return createMany(ctx, ts.tx, kind, intervals)
}

// =============================================================================
// REPORT STORE (subsidy.ReportStore interface)
// =============================================================================

func (s *Store) ListIntervals(ctx context.Context, filter subsidy.IntervalFilter) ([]subsidy.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.SubjectID != "" {
		where = append(where, "subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	if filter.Reimbursable != nil {
		where = append(where, "reimbursable = ?")
		args = append(args, *filter.Reimbursable)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + intervalColumns + ` FROM intervals`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY subject_id ASC, start_date ASC, id ASC`

	return queryIntervals(ctx, s.db, query, args...)
}

func (s *Store) GetInterval(ctx context.Context, id subsidy.IntervalID) (*subsidy.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ivs, err := queryIntervals(ctx, s.db,
		`SELECT `+intervalColumns+` FROM intervals WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(ivs) == 0 {
		return nil, generic.ErrNotFound
	}
	return &ivs[0], nil
}

func (s *Store) UpdateStatus(ctx context.Context, id subsidy.IntervalID, status subsidy.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `UPDATE intervals SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrNotFound
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func queryIntervals(ctx context.Context, q querier, query string, args ...any) ([]subsidy.Interval, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query intervals: %w", err)
	}
	defer rows.Close()

	var intervals []subsidy.Interval
	for rows.Next() {
		iv, err := scanInterval(rows)
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}

	return intervals, rows.Err()
}

func scanInterval(rows *sql.Rows) (subsidy.Interval, error) {
	var (
		iv            subsidy.Interval
		leaveID       sql.NullString
		startDate     string
		endDate       string
		maxFilingDate sql.NullString
		grantedDate   sql.NullString
		createdAt     string
	)

	err := rows.Scan(
		&iv.ID, &iv.Kind, &iv.SubjectID, &leaveID, &startDate, &endDate, &iv.TotalDays,
		&iv.Category, &iv.Continuous, &iv.Status, &iv.Reimbursable,
		&maxFilingDate, &grantedDate, &createdAt,
	)
	if err != nil {
		return iv, fmt.Errorf("failed to scan interval: %w", err)
	}

	iv.LeaveID = subsidy.IntervalID(leaveID.String)
	if iv.Period.Start, err = generic.ParseDate(startDate); err != nil {
		return iv, corruptRow(iv.ID, "start_date", err)
	}
	if iv.Period.End, err = generic.ParseDate(endDate); err != nil {
		return iv, corruptRow(iv.ID, "end_date", err)
	}
	if maxFilingDate.Valid {
		if iv.MaxFilingDate, err = generic.ParseDate(maxFilingDate.String); err != nil {
			return iv, corruptRow(iv.ID, "max_filing_date", err)
		}
	}
	if grantedDate.Valid {
		if iv.GrantedDate, err = generic.ParseDate(grantedDate.String); err != nil {
			return iv, corruptRow(iv.ID, "granted_date", err)
		}
	}
	if iv.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return iv, corruptRow(iv.ID, "created_at", err)
	}

	return iv, nil
}

// ErrCorruptRow marks a stored value that no longer parses. It is a storage
// failure, never caller input.
var ErrCorruptRow = errors.New("corrupt interval row")

func corruptRow(id subsidy.IntervalID, column string, err error) error {
	return fmt.Errorf("%w: interval %s %s: %v", ErrCorruptRow, id, column, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
