package counter

import (
	"context"
	"fmt"
	"sync"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/entity"
	"autoinc/internal/core/sequence"
	"autoinc/internal/metadata"
	"autoinc/pkg/logger"
)

// Registry holds the binders of every model. Build one at startup and pass
// it to whatever saves documents; there is no package-level registry.
type Registry struct {
	allocator *Allocator

	mu       sync.RWMutex
	byModel  map[string][]*Binder
	counters map[string]string // counter name -> model
}

// NewRegistry creates an empty registry allocating through allocator.
func NewRegistry(allocator *Allocator) *Registry {
	return &Registry{
		allocator: allocator,
		byModel:   make(map[string][]*Binder),
		counters:  make(map[string]string),
	}
}

// Register attaches bindings to the model described by schema.
// Every field a binding touches must be declared by the schema, and counter
// names are unique across the registry.
func (r *Registry) Register(schema entity.Schema, bindings ...sequence.Binding) error {
	binders := make([]*Binder, 0, len(bindings))
	seen := make(map[string]bool, len(bindings))

	for _, b := range bindings {
		if b.ModelName == "" {
			b.ModelName = schema.Model
		}
		if b.ModelName != schema.Model {
			return apperror.NewConfiguration("binding model does not match schema").
				WithDetail("model", schema.Model).
				WithDetail("binding_model", b.ModelName)
		}

		binder, err := NewBinder(b, r.allocator)
		if err != nil {
			return err
		}
		if err := binder.Binding().CheckSchema(schema); err != nil {
			return err
		}

		name := binder.CounterName()
		if seen[name] {
			return duplicateCounter(schema.Model, name)
		}
		seen[name] = true
		binders = append(binders, binder)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for name := range seen {
		if _, exists := r.counters[name]; exists {
			return duplicateCounter(schema.Model, name)
		}
	}
	for _, binder := range binders {
		r.counters[binder.CounterName()] = schema.Model
	}
	r.byModel[schema.Model] = append(r.byModel[schema.Model], binders...)
	return nil
}

// RegisterModels registers the counters declared by model definitions.
func (r *Registry) RegisterModels(defs ...metadata.EntityDef) error {
	for _, def := range defs {
		if len(def.Counters) == 0 {
			continue
		}
		if err := r.Register(def.Schema(), def.Bindings()...); err != nil {
			return fmt.Errorf("model %s: %w", def.Name, err)
		}
	}
	return nil
}

func duplicateCounter(model, name string) error {
	return apperror.NewConfiguration("counter already defined").
		WithDetail("model", model).
		WithDetail("counter", name)
}

// Binders returns the binders of a model in registration order.
func (r *Registry) Binders(model string) []*Binder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Binder(nil), r.byModel[model]...)
}

// Lookup finds a binder of model by counter name, falling back to the name
// of the field it fills.
func (r *Registry) Lookup(model, name string) (*Binder, error) {
	binders := r.Binders(model)
	for _, b := range binders {
		if b.CounterName() == name {
			return b, nil
		}
	}
	for _, b := range binders {
		if b.Binding().IncField == name {
			return b, nil
		}
	}
	return nil, apperror.NewConfiguration("unknown counter").
		WithDetail("model", model).
		WithDetail("counter", name)
}

// BeforeSave runs every binder of the document's model. Each binder decides
// on its own; the first failure aborts the save and puts back the values
// earlier binders wrote.
func (r *Registry) BeforeSave(ctx context.Context, doc entity.Document) error {
	if doc == nil {
		return apperror.NewValidation("document is required")
	}
	restore := r.Snapshot(ctx, doc)
	for _, b := range r.Binders(doc.Model()) {
		if err := b.BeforeSave(ctx, doc); err != nil {
			restore()
			return err
		}
	}
	return nil
}

type fieldValue struct {
	name  string
	value any
	ok    bool
}

// Snapshot records the counter fields of doc. The returned func writes them
// back in reverse order; call it when the save that follows fails.
func (r *Registry) Snapshot(ctx context.Context, doc entity.Document) func() {
	if doc == nil {
		return func() {}
	}
	binders := r.Binders(doc.Model())
	saved := make([]fieldValue, 0, len(binders))
	for _, b := range binders {
		name := b.Binding().IncField
		v, ok := doc.Get(name)
		saved = append(saved, fieldValue{name: name, value: v, ok: ok})
	}

	return func() {
		for i := len(saved) - 1; i >= 0; i-- {
			f := saved[i]
			if _, has := doc.Get(f.name); !has && !f.ok {
				continue
			}
			if err := doc.Set(f.name, f.value); err != nil {
				logger.Warn(ctx, "restore counter field failed", "field", f.name, "error", err)
			}
		}
	}
}

// SetNext performs manual allocation for the named counter of doc.
func (r *Registry) SetNext(ctx context.Context, doc entity.Document, name string, save SaveFunc) (entity.Document, error) {
	if doc == nil {
		return nil, apperror.NewValidation("document is required")
	}
	b, err := r.Lookup(doc.Model(), name)
	if err != nil {
		return doc, err
	}
	return b.SetNext(ctx, doc, save)
}
