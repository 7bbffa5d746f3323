package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/entity"
	"autoinc/internal/core/id"
)

// DocumentsTable is the default table for stored documents.
const DocumentsTable = "documents"

const documentsDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	doc_key    uuid        PRIMARY KEY,
	model      text        NOT NULL,
	fields     jsonb       NOT NULL DEFAULT '{}'::jsonb,
	version    integer     NOT NULL DEFAULT 1,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS %[1]s_model_idx ON %[1]s (model);
`

// QuerierProvider resolves the querier for a context.
// TxManager is the production implementation.
type QuerierProvider interface {
	GetQuerier(ctx context.Context) Querier
}

// DocumentRepo stores documents as JSONB field maps.
type DocumentRepo struct {
	db    QuerierProvider
	table string
}

// NewDocumentRepo creates a document repository.
func NewDocumentRepo(db QuerierProvider) *DocumentRepo {
	return &DocumentRepo{db: db, table: DocumentsTable}
}

type documentRow struct {
	Key     id.ID  `db:"doc_key"`
	Fields  []byte `db:"fields"`
	Version int    `db:"version"`
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *DocumentRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// EnsureSchema creates the documents table if it does not exist.
func (r *DocumentRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.GetQuerier(ctx).Exec(ctx, fmt.Sprintf(documentsDDL, r.table)); err != nil {
		return fmt.Errorf("create %s: %w", r.table, err)
	}
	return nil
}

// Insert stores a new document.
func (r *DocumentRepo) Insert(ctx context.Context, doc entity.Persistent) error {
	fields, err := json.Marshal(doc.Values())
	if err != nil {
		return apperror.NewValidation("document fields cannot be encoded").WithCause(err)
	}

	sql, args, err := r.Builder().
		Insert(r.table).
		Columns("doc_key", "model", "fields", "version").
		Values(doc.Key(), doc.Model(), fields, doc.Version()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate(doc.Model(), "key", doc.Key().String())
		}
		return fmt.Errorf("insert %s: %w", r.table, err)
	}
	return nil
}

// Update replaces the stored fields with optimistic locking.
func (r *DocumentRepo) Update(ctx context.Context, doc entity.Persistent) error {
	fields, err := json.Marshal(doc.Values())
	if err != nil {
		return apperror.NewValidation("document fields cannot be encoded").WithCause(err)
	}

	sql, args, err := r.Builder().
		Update(r.table).
		Set("fields", fields).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"doc_key": doc.Key(), "model": doc.Model(), "version": doc.Version()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.table, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(doc.Model(), doc.Key().String())
	}

	doc.SetVersion(doc.Version() + 1)
	return nil
}

// Get loads a document of the schema's model.
func (r *DocumentRepo) Get(ctx context.Context, schema entity.Schema, key id.ID) (*entity.MapDocument, error) {
	sql, args, err := r.Builder().
		Select("doc_key", "fields", "version").
		From(r.table).
		Where(squirrel.Eq{"doc_key": key, "model": schema.Model}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row documentRow
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(schema.Model, key.String())
		}
		return nil, fmt.Errorf("get %s: %w", r.table, err)
	}

	var fields entity.Fields
	if err := fields.Scan(row.Fields); err != nil {
		return nil, fmt.Errorf("decode %s fields: %w", schema.Model, err)
	}
	return entity.RestoreMapDocument(schema, row.Key, fields, row.Version), nil
}
