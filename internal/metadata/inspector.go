package metadata

import (
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"autoinc/internal/core/id"
)

// TagName is the struct tag that binds a counter to a field:
//
//	Number int64 `autoinc:"name=invoice_number,ref=Customer|Year"`
//	Like   int64 `autoinc:"manual"`
const TagName = "autoinc"

// Inspect derives an EntityDef from a struct type. Field names are the Go
// field names, matching entity.FromStruct; embedded structs are flattened.
func Inspect(v any, name string) EntityDef {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name == "" {
		name = strings.ToLower(t.Name())
	}

	def := EntityDef{Name: name, Label: t.Name()}
	inspectStruct(t, &def, make(map[string]bool))
	return def
}

func inspectStruct(t reflect.Type, def *EntityDef, seen map[string]bool) {
	var embedded []reflect.Type

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			ft := field.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				embedded = append(embedded, ft)
				continue
			}
		}
		if !field.IsExported() || seen[field.Name] || field.Tag.Get("db") == "-" {
			continue
		}
		seen[field.Name] = true

		fDef := FieldDef{
			Name:     field.Name,
			Type:     mapFieldType(field.Type),
			ReadOnly: field.Name == "ID" || field.Name == "CreatedAt" || field.Name == "UpdatedAt",
		}

		if tag, ok := field.Tag.Lookup(TagName); ok {
			def.Counters = append(def.Counters, parseCounterTag(field.Name, tag))
			fDef.ReadOnly = true
		}
		def.Fields = append(def.Fields, fDef)
	}

	// Outer fields shadow promoted ones.
	for _, et := range embedded {
		inspectStruct(et, def, seen)
	}
}

func parseCounterTag(fieldName, tag string) CounterDef {
	c := CounterDef{Field: fieldName}
	for _, opt := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(opt), "=")
		switch key {
		case "name":
			c.Name = value
		case "ref":
			if value != "" {
				c.ReferenceFields = strings.Split(value, "|")
			}
		case "manual":
			c.Manual = true
		}
	}
	return c
}

var (
	idType      = reflect.TypeOf(id.ID{})
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

func mapFieldType(t reflect.Type) FieldType {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t {
	case idType:
		return TypeReference
	case timeType:
		return TypeDate
	case decimalType:
		return TypeNumber
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Bool:
		return TypeBoolean
	}
	return TypeString
}
