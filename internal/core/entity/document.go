// Package entity provides the document abstractions counters are bound to.
//
// The persistence framework owns documents and their lifecycle; the sequence
// engine only reads reference values from them, writes the allocated value
// into the target field and asks whether the document has been persisted.
package entity

import "autoinc/internal/core/id"

// PrimaryKeyField is the primary identifier field every model carries.
// Bindings without an explicit inc field target it.
const PrimaryKeyField = "id"

// Document is the view of an entity the sequence engine works with.
type Document interface {
	// Model returns the owning model name.
	Model() string

	// IsNew reports whether the document has never been persisted.
	IsNew() bool

	// HasField reports whether the model schema declares the field.
	HasField(name string) bool

	// Get returns the current value of a field. ok is false when the
	// field is declared but holds no value.
	Get(name string) (value any, ok bool)

	// Set writes a value into a field.
	Set(name string, value any) error
}

// Persistent is a Document that can be stored by a document repository.
type Persistent interface {
	Document

	// Key returns the storage key, independent of any counter field.
	Key() id.ID

	// Values returns a copy of the field values.
	Values() Fields

	// Version returns the optimistic locking version.
	Version() int

	// SetVersion updates the version after a successful write.
	SetVersion(v int)

	// MarkPersisted flips the document into the existing state.
	MarkPersisted()
}
