// Package sequence provides domain contracts for counter allocation:
// bindings, counter keys and the counter store.
// Implementations live in infrastructure layer.
package sequence

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/entity"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Binding attaches a counter to a field of a model.
type Binding struct {
	// ModelName identifies the owning model.
	ModelName string `json:"model" validate:"required"`

	// IncField receives the allocated value. Defaults to the primary key field.
	IncField string `json:"incField,omitempty"`

	// ReferenceFields scope the counter: every distinct combination of
	// their values owns an independent sequence. Order matters.
	ReferenceFields []string `json:"referenceFields,omitempty" validate:"unique,dive,required"`

	// CounterName overrides the base counter identifier.
	// Defaults to "<ModelName>_<IncField>".
	CounterName string `json:"counterName,omitempty"`

	// DisableHooks turns off automatic allocation on creation.
	// Values can then only be obtained through manual allocation.
	DisableHooks bool `json:"disableHooks,omitempty"`
}

// HooksEnabled reports whether creating a document allocates automatically.
func (b Binding) HooksEnabled() bool {
	return !b.DisableHooks
}

// WithDefaults returns a copy with IncField and CounterName resolved.
func (b Binding) WithDefaults() Binding {
	if b.IncField == "" {
		b.IncField = entity.PrimaryKeyField
	}
	if b.CounterName == "" && b.ModelName != "" {
		b.CounterName = fmt.Sprintf("%s_%s", b.ModelName, b.IncField)
	}
	b.ReferenceFields = slices.Clone(b.ReferenceFields)
	return b
}

// Validate checks the binding is well formed. Defaults should be applied first.
func (b Binding) Validate() error {
	if err := validate.Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperror.NewConfiguration("invalid counter binding").
				WithDetail("model", b.ModelName).
				WithDetail("field", verrs[0].Namespace()).
				WithDetail("rule", verrs[0].Tag()).
				WithCause(err)
		}
		return apperror.NewConfiguration("invalid counter binding").WithCause(err)
	}
	if b.IncField == "" || b.CounterName == "" {
		return apperror.NewConfiguration("counter binding has no target field").
			WithDetail("model", b.ModelName)
	}
	if slices.Contains(b.ReferenceFields, b.IncField) {
		return apperror.NewConfiguration("counter field cannot reference itself").
			WithDetail("model", b.ModelName).
			WithDetail("field", b.IncField)
	}
	return nil
}

// CheckSchema verifies every field the binding touches is declared.
func (b Binding) CheckSchema(schema entity.Schema) error {
	if !schema.Has(b.IncField) {
		return apperror.NewConfiguration("counter field not declared by model").
			WithDetail("model", b.ModelName).
			WithDetail("field", b.IncField)
	}
	for _, ref := range b.ReferenceFields {
		if !schema.Has(ref) {
			return apperror.NewConfiguration("reference field not declared by model").
				WithDetail("model", b.ModelName).
				WithDetail("field", ref)
		}
	}
	return nil
}
