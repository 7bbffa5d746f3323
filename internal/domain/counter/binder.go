package counter

import (
	"context"
	"fmt"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/entity"
	"autoinc/internal/core/sequence"
	"autoinc/pkg/logger"
)

// Assignment modes.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// SaveFunc persists a document. Supplied by the persistence framework.
type SaveFunc func(ctx context.Context, doc entity.Document) error

// Binder applies one binding to documents of its model.
//
// It exposes the two capabilities the persistence framework needs:
// BeforeSave, called for every save, and SetNext, called explicitly.
type Binder struct {
	binding   sequence.Binding
	allocator *Allocator
	recorder  Recorder
}

// NewBinder resolves the binding defaults and validates it.
func NewBinder(b sequence.Binding, allocator *Allocator) (*Binder, error) {
	if allocator == nil {
		return nil, apperror.NewConfiguration("binder requires an allocator").
			WithDetail("model", b.ModelName)
	}
	b = b.WithDefaults()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &Binder{
		binding:   b,
		allocator: allocator,
		recorder:  allocator.recorder,
	}, nil
}

// Binding returns the resolved binding.
func (b *Binder) Binding() sequence.Binding {
	return b.binding
}

// CounterName returns the base counter identifier.
func (b *Binder) CounterName() string {
	return b.binding.CounterName
}

// Key derives the counter id for doc without allocating.
func (b *Binder) Key(doc entity.Document) (string, error) {
	if err := b.checkModel(doc); err != nil {
		return "", err
	}
	return sequence.BuildKey(b.binding, doc)
}

// BeforeSave allocates into a new document when hooks are enabled.
// Existing documents are never touched, so updates do not advance counters.
// On error the document is left unchanged and the save must fail.
func (b *Binder) BeforeSave(ctx context.Context, doc entity.Document) error {
	if err := b.checkModel(doc); err != nil {
		return err
	}
	if !doc.IsNew() || !b.binding.HooksEnabled() || assigned(ctx, b.binding.CounterName) {
		return nil
	}
	_, err := b.assign(ctx, doc, ModeAuto)
	return err
}

// SetNext allocates the next value into doc and persists it right away
// through save, regardless of document state or hook settings.
// If save fails the previous field value is restored; the allocated number
// is lost.
func (b *Binder) SetNext(ctx context.Context, doc entity.Document, save SaveFunc) (entity.Document, error) {
	if err := b.checkModel(doc); err != nil {
		return doc, err
	}

	previous, hadPrevious := doc.Get(b.binding.IncField)

	value, err := b.assign(ctx, doc, ModeManual)
	if err != nil {
		return doc, err
	}

	if save != nil {
		if err := save(withAssigned(ctx, b.binding.CounterName), doc); err != nil {
			if !hadPrevious {
				previous = nil
			}
			if rbErr := doc.Set(b.binding.IncField, previous); rbErr != nil {
				logger.Warn(ctx, "restore counter field failed", "field", b.binding.IncField, "error", rbErr)
			}
			return doc, fmt.Errorf("persist %s=%d: %w", b.binding.IncField, value, err)
		}
	}
	return doc, nil
}

// assign runs key build + allocation and writes the value into the field.
func (b *Binder) assign(ctx context.Context, doc entity.Document, mode string) (int64, error) {
	key, err := sequence.BuildKey(b.binding, doc)
	if err != nil {
		return 0, err
	}

	value, err := b.allocator.Next(ctx, key)
	if err != nil {
		return 0, err
	}

	if err := doc.Set(b.binding.IncField, value); err != nil {
		return 0, fmt.Errorf("write %s: %w", b.binding.IncField, err)
	}

	b.recorder.ObserveAssignment(b.binding.ModelName, b.binding.CounterName, mode)
	logger.Debug(ctx, "counter assigned",
		"model", b.binding.ModelName,
		"counter_id", key,
		"field", b.binding.IncField,
		"value", value,
		"mode", mode,
	)
	return value, nil
}

type assignedKey struct{ counter string }

// withAssigned marks the counter as filled for the save that follows a
// manual allocation, so the pre-save step does not allocate a second time.
func withAssigned(ctx context.Context, counterName string) context.Context {
	return context.WithValue(ctx, assignedKey{counterName}, true)
}

func assigned(ctx context.Context, counterName string) bool {
	v, _ := ctx.Value(assignedKey{counterName}).(bool)
	return v
}

func (b *Binder) checkModel(doc entity.Document) error {
	if doc == nil {
		return apperror.NewValidation("document is required")
	}
	if doc.Model() != b.binding.ModelName {
		return apperror.NewConfiguration("binding does not belong to document model").
			WithDetail("model", doc.Model()).
			WithDetail("binding_model", b.binding.ModelName)
	}
	return nil
}
