// Package domain provides the entity service and the contracts it persists through.
package domain

import (
	"context"

	"autoinc/internal/core/entity"
	"autoinc/internal/core/id"
)

// DocumentRepository stores documents as field maps keyed by their
// technical key.
type DocumentRepository interface {
	// Insert stores a new document. A duplicate key is DUPLICATE_ENTRY.
	Insert(ctx context.Context, doc entity.Persistent) error

	// Update replaces the fields of a stored document with optimistic
	// locking: the stored version must equal doc.Version(). On success the
	// version is incremented on both sides.
	Update(ctx context.Context, doc entity.Persistent) error

	// Get loads a document of the schema's model.
	Get(ctx context.Context, schema entity.Schema, key id.ID) (*entity.MapDocument, error)
}
