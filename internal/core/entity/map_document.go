package entity

import (
	"slices"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/id"
)

// Schema declares the fields of a model.
// The primary identifier field is always part of a schema.
type Schema struct {
	Model  string
	Fields []string
}

// Has reports whether the schema declares the field.
func (s Schema) Has(field string) bool {
	return field == PrimaryKeyField || slices.Contains(s.Fields, field)
}

// MapDocument is a schema-checked document holding its values in a map.
// It is not safe for concurrent use, like any entity value.
type MapDocument struct {
	schema    Schema
	key       id.ID
	fields    Fields
	version   int
	persisted bool
}

// Compile-time check that MapDocument implements Persistent.
var _ Persistent = (*MapDocument)(nil)

// NewMapDocument creates an unsaved document with a fresh key.
// Values for fields the schema does not declare are rejected.
func NewMapDocument(schema Schema, values map[string]any) (*MapDocument, error) {
	doc := &MapDocument{
		schema:  schema,
		key:     id.New(),
		fields:  make(Fields, len(values)),
		version: 1,
	}
	for name, value := range values {
		if err := doc.Set(name, value); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// RestoreMapDocument rebuilds a persisted document loaded by a repository.
func RestoreMapDocument(schema Schema, key id.ID, fields Fields, version int) *MapDocument {
	if fields == nil {
		fields = make(Fields)
	}
	return &MapDocument{
		schema:    schema,
		key:       key,
		fields:    fields,
		version:   version,
		persisted: true,
	}
}

// Model implements Document.
func (d *MapDocument) Model() string { return d.schema.Model }

// Schema returns the schema the document was built with.
func (d *MapDocument) Schema() Schema { return d.schema }

// IsNew implements Document.
func (d *MapDocument) IsNew() bool { return !d.persisted }

// HasField implements Document.
func (d *MapDocument) HasField(name string) bool { return d.schema.Has(name) }

// Get implements Document.
func (d *MapDocument) Get(name string) (any, bool) {
	v, ok := d.fields[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Set implements Document.
func (d *MapDocument) Set(name string, value any) error {
	if !d.schema.Has(name) {
		return apperror.NewValidation("unknown field").
			WithDetail("model", d.schema.Model).
			WithDetail("field", name)
	}
	d.fields[name] = value
	return nil
}

// Key implements Persistent.
func (d *MapDocument) Key() id.ID { return d.key }

// Values implements Persistent.
func (d *MapDocument) Values() Fields { return d.fields.Clone() }

// Version implements Persistent.
func (d *MapDocument) Version() int { return d.version }

// SetVersion implements Persistent.
func (d *MapDocument) SetVersion(v int) { d.version = v }

// MarkPersisted implements Persistent.
func (d *MapDocument) MarkPersisted() { d.persisted = true }
