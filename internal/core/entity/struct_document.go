package entity

import (
	"fmt"
	"reflect"
	"sync"

	"autoinc/internal/core/apperror"
)

// StructDocument adapts a pointer to a struct into a Document.
// Fields are addressed by their Go name; a "db" tag adds an alias and
// `db:"-"` hides the field. Embedded structs are flattened.
//
// Usage:
//
//	doc, err := entity.FromStruct("invoice", &inv, true)
type StructDocument struct {
	model     string
	rv        reflect.Value
	meta      *typeMetadata
	persisted bool
}

// typeMetadata contains cached reflection metadata for a struct type:
// field name or alias -> field index path.
type typeMetadata struct {
	fields map[string][]int
}

// Global cache for type metadata (thread-safe).
var typeCache sync.Map // map[reflect.Type]*typeMetadata

// FromStruct wraps ptr, which must be a non-nil pointer to a struct.
// isNew is the persistence framework's view of the entity.
func FromStruct(model string, ptr any, isNew bool) (*StructDocument, error) {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity %s: expected non-nil pointer to struct, got %T", model, ptr)
	}
	rv = rv.Elem()
	return &StructDocument{
		model:     model,
		rv:        rv,
		meta:      getOrCreateTypeMetadata(rv.Type()),
		persisted: !isNew,
	}, nil
}

// getOrCreateTypeMetadata returns cached metadata or creates it if not exists.
// This function reflects once per type, then metadata is reused.
func getOrCreateTypeMetadata(t reflect.Type) *typeMetadata {
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{fields: make(map[string][]int)}
	collectFields(t, nil, meta.fields)

	actual, _ := typeCache.LoadOrStore(t, meta)
	return actual.(*typeMetadata)
}

// collectFields walks t recursively, descending into embedded structs.
// Outer fields win over embedded ones with the same name.
func collectFields(t reflect.Type, prefix []int, out map[string][]int) {
	var embedded []reflect.StructField

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			embedded = append(embedded, field)
			continue
		}
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "-" {
			continue
		}
		idx := appendIndex(prefix, i)
		for _, name := range []string{field.Name, tag} {
			if name == "" {
				continue
			}
			if _, exists := out[name]; !exists {
				out[name] = idx
			}
		}
	}

	for _, field := range embedded {
		collectFields(field.Type, appendIndex(prefix, field.Index[0]), out)
	}
}

func appendIndex(prefix []int, i int) []int {
	idx := make([]int, len(prefix)+1)
	copy(idx, prefix)
	idx[len(prefix)] = i
	return idx
}

// Model implements Document.
func (d *StructDocument) Model() string { return d.model }

// IsNew implements Document.
func (d *StructDocument) IsNew() bool { return !d.persisted }

// MarkPersisted records that the host framework stored the entity.
func (d *StructDocument) MarkPersisted() { d.persisted = true }

// HasField implements Document.
func (d *StructDocument) HasField(name string) bool {
	_, ok := d.meta.fields[name]
	return ok
}

// Get implements Document. Nil pointers and nil interfaces report no value.
func (d *StructDocument) Get(name string) (any, bool) {
	idx, ok := d.meta.fields[name]
	if !ok {
		return nil, false
	}
	fv := d.rv.FieldByIndex(idx)
	switch fv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if fv.IsNil() {
			return nil, false
		}
		if fv.Kind() == reflect.Pointer {
			return fv.Elem().Interface(), true
		}
	}
	return fv.Interface(), true
}

// Set implements Document. Integer values are converted to the field's
// integer kind; other values must be assignable to the field.
func (d *StructDocument) Set(name string, value any) error {
	idx, ok := d.meta.fields[name]
	if !ok {
		return apperror.NewConfiguration("unknown field").
			WithDetail("model", d.model).
			WithDetail("field", name)
	}
	fv := d.rv.FieldByIndex(idx)

	if n, isInt := value.(int64); isInt {
		if err := setInt(fv, n); err != nil {
			return apperror.NewConfiguration(err.Error()).
				WithDetail("model", d.model).
				WithDetail("field", name)
		}
		return nil
	}

	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	v := reflect.ValueOf(value)
	if !v.Type().AssignableTo(fv.Type()) {
		return apperror.NewConfiguration(fmt.Sprintf("cannot assign %T to field of type %s", value, fv.Type())).
			WithDetail("model", d.model).
			WithDetail("field", name)
	}
	fv.Set(v)
	return nil
}

// setInt stores n into an integer field, a pointer to one, or an interface.
func setInt(fv reflect.Value, n int64) error {
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fv.OverflowInt(n) {
			return fmt.Errorf("value %d overflows %s", n, fv.Type())
		}
		fv.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n < 0 || fv.OverflowUint(uint64(n)) {
			return fmt.Errorf("value %d overflows %s", n, fv.Type())
		}
		fv.SetUint(uint64(n))
		return nil
	case reflect.Pointer:
		elem := reflect.New(fv.Type().Elem())
		if err := setInt(elem.Elem(), n); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	case reflect.Interface:
		if !reflect.TypeOf(n).AssignableTo(fv.Type()) {
			return fmt.Errorf("cannot store integer in %s", fv.Type())
		}
		fv.Set(reflect.ValueOf(n))
		return nil
	}
	return fmt.Errorf("field of type %s cannot hold a sequence value", fv.Type())
}
