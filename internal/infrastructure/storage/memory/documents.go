// Package memory provides in-process storage used by tests and by the
// server when no database is configured.
package memory

import (
	"context"
	"sync"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/entity"
	"autoinc/internal/core/id"
)

type storedDocument struct {
	model   string
	fields  entity.Fields
	version int
}

// DocumentRepo keeps documents in a map. Safe for concurrent use.
type DocumentRepo struct {
	mu   sync.RWMutex
	docs map[id.ID]storedDocument
}

// NewDocumentRepo creates an empty repository.
func NewDocumentRepo() *DocumentRepo {
	return &DocumentRepo{docs: make(map[id.ID]storedDocument)}
}

// Insert stores a new document.
func (r *DocumentRepo) Insert(ctx context.Context, doc entity.Persistent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.docs[doc.Key()]; exists {
		return apperror.NewDuplicate(doc.Model(), "key", doc.Key().String())
	}
	r.docs[doc.Key()] = storedDocument{
		model:   doc.Model(),
		fields:  doc.Values(),
		version: doc.Version(),
	}
	return nil
}

// Update replaces the stored fields when the versions match.
func (r *DocumentRepo) Update(ctx context.Context, doc entity.Persistent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.docs[doc.Key()]
	if !ok || stored.model != doc.Model() {
		return apperror.NewNotFound(doc.Model(), doc.Key().String())
	}
	if stored.version != doc.Version() {
		return apperror.NewConcurrentModification(doc.Model(), doc.Key().String())
	}

	stored.fields = doc.Values()
	stored.version++
	r.docs[doc.Key()] = stored
	doc.SetVersion(stored.version)
	return nil
}

// Get loads a copy of a stored document.
func (r *DocumentRepo) Get(ctx context.Context, schema entity.Schema, key id.ID) (*entity.MapDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.docs[key]
	if !ok || stored.model != schema.Model {
		return nil, apperror.NewNotFound(schema.Model, key.String())
	}
	return entity.RestoreMapDocument(schema, key, stored.fields.Clone(), stored.version), nil
}

// Len returns the number of stored documents.
func (r *DocumentRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}
