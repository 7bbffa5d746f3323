// Package metadata describes the models the server stores and the counters
// bound to them.
package metadata

import (
	"slices"
	"sort"
	"sync"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/entity"
	"autoinc/internal/core/sequence"
)

// FieldType defines the data type of a field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInteger   FieldType = "integer"
	TypeNumber    FieldType = "number" // float/decimal
	TypeBoolean   FieldType = "boolean"
	TypeDate      FieldType = "date"
	TypeReference FieldType = "reference"
)

var knownTypes = []FieldType{TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeDate, TypeReference}

// EntityDef describes a model.
type EntityDef struct {
	Name     string       `json:"name" yaml:"name"`
	Label    string       `json:"label,omitempty" yaml:"label"`
	Fields   []FieldDef   `json:"fields" yaml:"fields"`
	Counters []CounterDef `json:"counters,omitempty" yaml:"counters"`
}

// FieldDef describes a field.
type FieldDef struct {
	Name     string    `json:"name" yaml:"name"`
	Label    string    `json:"label,omitempty" yaml:"label"`
	Type     FieldType `json:"type" yaml:"type"`
	Required bool      `json:"required,omitempty" yaml:"required"`
	ReadOnly bool      `json:"readOnly,omitempty" yaml:"readOnly"`
}

// CounterDef binds a counter to a field of the model.
type CounterDef struct {
	Name            string   `json:"name,omitempty" yaml:"name"`
	Field           string   `json:"field,omitempty" yaml:"field"`
	ReferenceFields []string `json:"referenceFields,omitempty" yaml:"referenceFields"`
	Manual          bool     `json:"manual,omitempty" yaml:"manual"`
}

// Schema returns the field set documents of this model accept.
func (d EntityDef) Schema() entity.Schema {
	fields := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		fields[i] = f.Name
	}
	return entity.Schema{Model: d.Name, Fields: fields}
}

// Bindings converts the counter declarations into resolved bindings.
func (d EntityDef) Bindings() []sequence.Binding {
	out := make([]sequence.Binding, len(d.Counters))
	for i, c := range d.Counters {
		out[i] = sequence.Binding{
			ModelName:       d.Name,
			IncField:        c.Field,
			ReferenceFields: slices.Clone(c.ReferenceFields),
			CounterName:     c.Name,
			DisableHooks:    c.Manual,
		}.WithDefaults()
	}
	return out
}

// IsReadOnly reports whether clients may not change field on a stored
// document. The primary key and counter fields are always read-only.
func (d EntityDef) IsReadOnly(field string) bool {
	if field == entity.PrimaryKeyField {
		return true
	}
	for _, f := range d.Fields {
		if f.Name == field && f.ReadOnly {
			return true
		}
	}
	for _, b := range d.Bindings() {
		if b.IncField == field {
			return true
		}
	}
	return false
}

// Validate checks field declarations and counter bindings.
func (d EntityDef) Validate() error {
	if d.Name == "" {
		return apperror.NewConfiguration("model name is required")
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return apperror.NewConfiguration("field name is required").
				WithDetail("model", d.Name).
				WithDetail("field", f.Name)
		}
		if seen[f.Name] {
			return apperror.NewConfiguration("field declared twice").
				WithDetail("model", d.Name).
				WithDetail("field", f.Name)
		}
		seen[f.Name] = true
		if f.Type != "" && !slices.Contains(knownTypes, f.Type) {
			return apperror.NewConfiguration("unknown field type").
				WithDetail("model", d.Name).
				WithDetail("field", f.Name).
				WithDetail("type", string(f.Type))
		}
	}

	schema := d.Schema()
	for _, b := range d.Bindings() {
		if err := b.Validate(); err != nil {
			return err
		}
		if err := b.CheckSchema(schema); err != nil {
			return err
		}
	}
	return nil
}

// Registry stores entity definitions.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]EntityDef
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]EntityDef),
	}
}

// Register validates and adds a definition. Names are unique.
func (r *Registry) Register(def EntityDef) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[def.Name]; exists {
		return apperror.NewConfiguration("model already registered").WithDetail("model", def.Name)
	}
	r.entities[def.Name] = def
	return nil
}

// Get returns the definition of a model.
func (r *Registry) Get(name string) (EntityDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entities[name]
	return d, ok
}

// List returns all definitions ordered by name.
func (r *Registry) List() []EntityDef {
	r.mu.RLock()
	list := make([]EntityDef, 0, len(r.entities))
	for _, def := range r.entities {
		list = append(list, def)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
