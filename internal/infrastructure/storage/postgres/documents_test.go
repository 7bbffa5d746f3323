package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/entity"
)

var invoiceSchema = entity.Schema{Model: "invoice", Fields: []string{"customer", "number"}}

type execCall struct {
	sql  string
	args []any
}

// fakeQuerier records Exec calls and answers with a fixed command tag.
type fakeQuerier struct {
	tag   string
	err   error
	calls []execCall
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.calls = append(q.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag(q.tag), q.err
}

func (q *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (q *fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (q *fakeQuerier) GetQuerier(context.Context) Querier { return q }

func newInvoice(t *testing.T) *entity.MapDocument {
	t.Helper()
	doc, err := entity.NewMapDocument(invoiceSchema, map[string]any{"customer": "acme", "number": int64(7)})
	require.NoError(t, err)
	return doc
}

func TestDocumentRepo_EnsureSchema(t *testing.T) {
	q := &fakeQuerier{tag: "CREATE TABLE"}
	require.NoError(t, NewDocumentRepo(q).EnsureSchema(context.Background()))

	require.Len(t, q.calls, 1)
	assert.Contains(t, q.calls[0].sql, "CREATE TABLE IF NOT EXISTS documents")
	assert.Contains(t, q.calls[0].sql, "documents_model_idx")
}

func TestDocumentRepo_Insert(t *testing.T) {
	q := &fakeQuerier{tag: "INSERT 0 1"}
	doc := newInvoice(t)

	require.NoError(t, NewDocumentRepo(q).Insert(context.Background(), doc))

	require.Len(t, q.calls, 1)
	assert.Equal(t, "INSERT INTO documents (doc_key,model,fields,version) VALUES ($1,$2,$3,$4)", q.calls[0].sql)
	assert.Equal(t, doc.Key(), q.calls[0].args[0])
	assert.Equal(t, "invoice", q.calls[0].args[1])
	assert.JSONEq(t, `{"customer":"acme","number":7}`, string(q.calls[0].args[2].([]byte)))
}

func TestDocumentRepo_InsertDuplicate(t *testing.T) {
	q := &fakeQuerier{err: &pgconn.PgError{Code: "23505"}}

	err := NewDocumentRepo(q).Insert(context.Background(), newInvoice(t))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDuplicate, appErr.Code)
}

func TestDocumentRepo_Update(t *testing.T) {
	q := &fakeQuerier{tag: "UPDATE 1"}
	doc := newInvoice(t)
	doc.MarkPersisted()

	require.NoError(t, NewDocumentRepo(q).Update(context.Background(), doc))
	assert.Equal(t, 2, doc.Version())

	require.Len(t, q.calls, 1)
	assert.Contains(t, q.calls[0].sql, "version = version + 1")
	assert.Contains(t, q.calls[0].sql, "WHERE doc_key = $2 AND model = $3 AND version = $4")
}

func TestDocumentRepo_UpdateStale(t *testing.T) {
	q := &fakeQuerier{tag: "UPDATE 0"}
	doc := newInvoice(t)
	doc.MarkPersisted()

	err := NewDocumentRepo(q).Update(context.Background(), doc)
	assert.True(t, apperror.IsConcurrentModification(err))
	assert.Equal(t, 1, doc.Version(), "version is kept on conflict")
}

func TestDocumentRepo_UpdateFailure(t *testing.T) {
	boom := errors.New("connection reset")
	q := &fakeQuerier{err: boom}
	doc := newInvoice(t)
	doc.MarkPersisted()

	err := NewDocumentRepo(q).Update(context.Background(), doc)
	assert.ErrorIs(t, err, boom)
}
