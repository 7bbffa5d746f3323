package domain

import (
	"context"
	"fmt"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/entity"
	"autoinc/internal/core/id"
	"autoinc/internal/core/tx"
	"autoinc/internal/domain/counter"
	"autoinc/pkg/logger"
)

// EntityService saves documents and drives their lifecycle hooks.
//
// Counter allocation is a before-create/before-update hook and therefore runs
// before the repository transaction is opened.
type EntityService struct {
	repo      DocumentRepository
	txManager tx.Manager
	counters  *counter.Registry
	hooks     *HookRegistry[entity.Persistent]
}

// EntityServiceConfig configures the entity service.
type EntityServiceConfig struct {
	Repo      DocumentRepository
	TxManager tx.Manager // Optional, defaults to tx.Direct
	Counters  *counter.Registry
}

// NewEntityService creates the service and wires the counter registry into
// its save hooks.
func NewEntityService(cfg EntityServiceConfig) *EntityService {
	txm := cfg.TxManager
	if txm == nil {
		txm = tx.Direct
	}
	s := &EntityService{
		repo:      cfg.Repo,
		txManager: txm,
		counters:  cfg.Counters,
		hooks:     NewHookRegistry[entity.Persistent](),
	}
	if s.counters != nil {
		// Both events go through the same check; existing documents are
		// skipped by the binders, so updates never allocate.
		beforeSave := func(ctx context.Context, doc entity.Persistent) error {
			return s.counters.BeforeSave(ctx, doc)
		}
		s.hooks.OnBeforeCreate(beforeSave)
		s.hooks.OnBeforeUpdate(beforeSave)
	}
	return s
}

// Hooks returns the hook registry for external registration.
func (s *EntityService) Hooks() *HookRegistry[entity.Persistent] {
	return s.hooks
}

// Counters returns the counter registry, or nil.
func (s *EntityService) Counters() *counter.Registry {
	return s.counters
}

// Create persists a new document.
func (s *EntityService) Create(ctx context.Context, doc entity.Persistent) error {
	if !doc.IsNew() {
		return apperror.NewConflict("document is already persisted").
			WithDetail("model", doc.Model()).
			WithDetail("key", doc.Key().String())
	}

	// Counter fields go back to their previous values if the create fails;
	// numbers already taken from the store stay consumed.
	restore := func() {}
	if s.counters != nil {
		restore = s.counters.Snapshot(ctx, doc)
	}

	// 1. Run before-create hooks (counter allocation)
	if err := s.hooks.RunBeforeCreate(ctx, doc); err != nil {
		restore()
		return err
	}

	// 2. Insert in transaction
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, doc); err != nil {
			return fmt.Errorf("create %s: %w", doc.Model(), err)
		}
		return nil
	})
	if err != nil {
		restore()
		return err
	}
	doc.MarkPersisted()

	// 3. Run after-create hooks (outside transaction)
	if err := s.hooks.RunAfterCreate(ctx, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "model", doc.Model(), "error", err)
	}
	return nil
}

// Update persists changes of a stored document. It never allocates.
func (s *EntityService) Update(ctx context.Context, doc entity.Persistent) error {
	if doc.IsNew() {
		return apperror.NewValidation("document is not persisted yet").
			WithDetail("model", doc.Model())
	}

	if err := s.hooks.RunBeforeUpdate(ctx, doc); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update %s: %w", doc.Model(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterUpdate(ctx, doc); err != nil {
		logger.Warn(ctx, "after-update hook failed", "model", doc.Model(), "error", err)
	}
	return nil
}

// Save creates new documents and updates persisted ones.
func (s *EntityService) Save(ctx context.Context, doc entity.Document) error {
	p, ok := doc.(entity.Persistent)
	if !ok {
		return apperror.NewValidation(fmt.Sprintf("document %T cannot be persisted", doc))
	}
	if p.IsNew() {
		return s.Create(ctx, p)
	}
	return s.Update(ctx, p)
}

// SetNext allocates the next value of the named counter into doc and saves
// the document. The returned document carries the new value.
func (s *EntityService) SetNext(ctx context.Context, doc entity.Persistent, name string) (entity.Persistent, error) {
	if s.counters == nil {
		return doc, apperror.NewConfiguration("no counters are registered").
			WithDetail("model", doc.Model())
	}
	if _, err := s.counters.SetNext(ctx, doc, name, s.Save); err != nil {
		return doc, err
	}
	return doc, nil
}

// Get loads a document.
func (s *EntityService) Get(ctx context.Context, schema entity.Schema, key id.ID) (*entity.MapDocument, error) {
	doc, err := s.repo.Get(ctx, schema, key)
	if err != nil {
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.NewInternal(err).WithDetail("model", schema.Model).WithDetail("key", key.String())
	}
	return doc, nil
}
