// Package counterstore provides the counter store backends.
package counterstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/sequence"
)

// DefaultTable is the counter table used by the SQL stores.
const DefaultTable = "sys_counters"

const postgresDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	counter_id     text   PRIMARY KEY,
	sequence_value bigint NOT NULL DEFAULT 0,
	CONSTRAINT %[1]s_value_check CHECK (sequence_value >= 0)
)`

// Querier for database operations. Satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps counters in a PostgreSQL table.
//
// Every increment is a single INSERT ... ON CONFLICT DO UPDATE ... RETURNING
// statement, so the row lock taken by the upsert is the only
// synchronization. It must be given a pool, not a transaction: a counter row
// held by a long transaction blocks every other allocation on it.
type PostgresStore struct {
	db    Querier
	table string
}

var _ sequence.AdminStore = (*PostgresStore)(nil)

// NewPostgresStore creates a store over db using DefaultTable.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db, table: DefaultTable}
}

func (s *PostgresStore) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// EnsureSchema creates the counter table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(postgresDDL, s.table)); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// FindAndIncrement implements sequence.Store.
func (s *PostgresStore) FindAndIncrement(ctx context.Context, counterID string) (int64, error) {
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
	if err := s.db.QueryRow(ctx, query, args...).Scan(&value); err != nil {
		return 0, mapPostgresError(counterID, err)
	}
	return value, nil
}

// Get implements sequence.Inspector.
func (s *PostgresStore) Get(ctx context.Context, counterID string) (sequence.Record, error) {
	query, args, err := s.builder().
		Select("counter_id", "sequence_value").
		From(s.table).
		Where(squirrel.Eq{"counter_id": counterID}).
		ToSql()
	if err != nil {
		return sequence.Record{}, fmt.Errorf("build query: %w", err)
	}

	var rec sequence.Record
	if err := pgxscan.Get(ctx, s.db, &rec, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return sequence.Record{}, apperror.NewNotFound("counter", counterID)
		}
		return sequence.Record{}, mapPostgresError(counterID, err)
	}
	return rec, nil
}

// List implements sequence.Inspector.
func (s *PostgresStore) List(ctx context.Context, prefix string, limit int) ([]sequence.Record, error) {
	q := s.builder().
		Select("counter_id", "sequence_value").
		From(s.table).
		OrderBy("counter_id").
		Limit(uint64(normalizeLimit(limit)))
	if prefix != "" {
		q = q.Where(squirrel.Like{"counter_id": escapeLike(prefix) + "%"})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []sequence.Record
	if err := pgxscan.Select(ctx, s.db, &records, query, args...); err != nil {
		return nil, mapPostgresError(prefix, err)
	}
	return records, nil
}

// Raise implements sequence.Inspector.
func (s *PostgresStore) Raise(ctx context.Context, counterID string, value int64) (int64, error) {
	if err := checkRaise(counterID, value); err != nil {
		return 0, err
	}

	query, args, err := s.builder().
		Insert(s.table).
		Columns("counter_id", "sequence_value").
		Values(counterID, value).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (counter_id) DO UPDATE SET sequence_value = GREATEST(%s.sequence_value, EXCLUDED.sequence_value) RETURNING sequence_value",
			s.table)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build raise: %w", err)
	}

	var result int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&result); err != nil {
		return 0, mapPostgresError(counterID, err)
	}
	return result, nil
}

// Ping implements sequence.AdminStore.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if p, ok := s.db.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	_, err := s.db.Exec(ctx, "SELECT 1")
	return err
}

// mapPostgresError classifies database errors. Overflow and check
// violations mean the stored record is unusable; the rest is unavailability.
func mapPostgresError(counterID string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22003": // numeric_value_out_of_range
			return apperror.NewStorageInvariantViolation(counterID, "counter overflow").WithCause(err)
		case "23514": // check_violation
			return apperror.NewStorageInvariantViolation(counterID, "counter value out of range").WithCause(err)
		}
	}
	return apperror.NewStorageUnavailable(counterID, err)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike quotes LIKE metacharacters using the default backslash escape.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
