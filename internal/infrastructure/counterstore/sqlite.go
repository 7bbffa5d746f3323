package counterstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/sequence"
)

const sqliteDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	counter_id     TEXT    PRIMARY KEY,
	sequence_value INTEGER NOT NULL DEFAULT 0 CHECK (sequence_value >= 0)
)`

// SQLiteStore keeps counters in a SQLite database file. Processes sharing
// the file share the counters; SQLite's write lock serializes increments.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

var _ sequence.AdminStore = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and ensures the
// counter table exists.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer connection; other processes wait on busy_timeout.
	db.SetMaxOpenConns(1)

	s := NewSQLiteStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// NewSQLiteStore creates a store over an open database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, table: DefaultTable}
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}

// EnsureSchema creates the counter table if it does not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(sqliteDDL, s.table)); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// FindAndIncrement implements sequence.Store.
func (s *SQLiteStore) FindAndIncrement(ctx context.Context, counterID string) (int64, error) {
	query, args, err := s.builder().
		Insert(s.table).
		Columns("counter_id", "sequence_value").
		Values(counterID, 1).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (counter_id) DO UPDATE SET sequence_value = %s.sequence_value + 1 RETURNING sequence_value",
			s.table)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build increment: %w", err)
	}

	var value int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		return 0, mapSQLiteError(counterID, err)
	}
	return value, nil
}

// Get implements sequence.Inspector.
func (s *SQLiteStore) Get(ctx context.Context, counterID string) (sequence.Record, error) {
	query, args, err := s.builder().
		Select("counter_id", "sequence_value").
		From(s.table).
		Where(squirrel.Eq{"counter_id": counterID}).
		ToSql()
	if err != nil {
		return sequence.Record{}, fmt.Errorf("build query: %w", err)
	}

	var rec sequence.Record
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&rec.CounterID, &rec.SequenceValue)
	if errors.Is(err, sql.ErrNoRows) {
		return sequence.Record{}, apperror.NewNotFound("counter", counterID)
	}
	if err != nil {
		return sequence.Record{}, mapSQLiteError(counterID, err)
	}
	return rec, nil
}

// List implements sequence.Inspector.
func (s *SQLiteStore) List(ctx context.Context, prefix string, limit int) ([]sequence.Record, error) {
	q := s.builder().
		Select("counter_id", "sequence_value").
		From(s.table).
		OrderBy("counter_id").
		Limit(uint64(normalizeLimit(limit)))
	if prefix != "" {
		// LIKE is case-insensitive in SQLite; instr gives an exact prefix match.
		q = q.Where(squirrel.Expr("instr(counter_id, ?) = 1", prefix))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteError(prefix, err)
	}
	defer rows.Close()

	var records []sequence.Record
	for rows.Next() {
		var rec sequence.Record
		if err := rows.Scan(&rec.CounterID, &rec.SequenceValue); err != nil {
			return nil, mapSQLiteError(prefix, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(prefix, err)
	}
	return records, nil
}

// Raise implements sequence.Inspector.
func (s *SQLiteStore) Raise(ctx context.Context, counterID string, value int64) (int64, error) {
	if err := checkRaise(counterID, value); err != nil {
		return 0, err
	}

	query, args, err := s.builder().
		Insert(s.table).
		Columns("counter_id", "sequence_value").
		Values(counterID, value).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (counter_id) DO UPDATE SET sequence_value = MAX(%s.sequence_value, excluded.sequence_value) RETURNING sequence_value",
			s.table)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build raise: %w", err)
	}

	var result int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&result); err != nil {
		return 0, mapSQLiteError(counterID, err)
	}
	return result, nil
}

// Ping implements sequence.AdminStore.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// mapSQLiteError classifies driver errors. A stored value that cannot be
// read as an integer, or an overflowing increment, is an invariant violation.
func mapSQLiteError(counterID string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "integer overflow"),
		strings.Contains(msg, "CHECK constraint failed"),
		strings.Contains(msg, "converting"):
		return apperror.NewStorageInvariantViolation(counterID, "counter record is not a valid sequence value").WithCause(err)
	}
	return apperror.NewStorageUnavailable(counterID, err)
}
