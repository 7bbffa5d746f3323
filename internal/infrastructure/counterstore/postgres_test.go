package counterstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoinc/internal/core/apperror"
)

type fakeRow struct {
	val int64
	err error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if ptr, ok := dest[0].(*int64); ok {
		*ptr = r.val
	}
	return nil
}

// fakeQuerier emulates the upsert against an in-memory table.
type fakeQuerier struct {
	mu      sync.Mutex
	values  map[string]int64
	queries []string
	err     error
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queries = append(q.queries, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), q.err
}

func (q *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queries = append(q.queries, sql)
	if q.err != nil {
		return &fakeRow{err: q.err}
	}
	if q.values == nil {
		q.values = make(map[string]int64)
	}
	id := args[0].(string)
	q.values[id]++
	return &fakeRow{val: q.values[id]}
}

func TestPostgresStore_FindAndIncrement(t *testing.T) {
	q := &fakeQuerier{}
	store := NewPostgresStore(q)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.FindAndIncrement(ctx, "main_id")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	assert.Equal(t,
		"INSERT INTO sys_counters (counter_id,sequence_value) VALUES ($1,$2) "+
			"ON CONFLICT (counter_id) DO UPDATE SET sequence_value = sys_counters.sequence_value + 1 RETURNING sequence_value",
		q.queries[0])
}

func TestPostgresStore_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		violation bool
	}{
		{"connection", errors.New("dial tcp: connection refused"), false},
		{"overflow", &pgconn.PgError{Code: "22003"}, true},
		{"check", &pgconn.PgError{Code: "23514"}, true},
		{"other pg error", &pgconn.PgError{Code: "40001"}, false},
		{"canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewPostgresStore(&fakeQuerier{err: tt.err})
			_, err := store.FindAndIncrement(context.Background(), "c")
			require.Error(t, err)
			assert.Equal(t, tt.violation, apperror.IsStorageInvariantViolation(err))
			assert.Equal(t, !tt.violation, apperror.IsStorageUnavailable(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	q := &fakeQuerier{}
	require.NoError(t, NewPostgresStore(q).EnsureSchema(context.Background()))
	require.Len(t, q.queries, 1)
	assert.Contains(t, q.queries[0], "CREATE TABLE IF NOT EXISTS sys_counters")
	assert.Contains(t, q.queries[0], "CHECK (sequence_value >= 0)")
}

func TestPostgresStore_RaiseRejectsNegative(t *testing.T) {
	q := &fakeQuerier{}
	_, err := NewPostgresStore(q).Raise(context.Background(), "c", -5)
	assert.True(t, apperror.IsAppError(err))
	assert.Empty(t, q.queries)
}
