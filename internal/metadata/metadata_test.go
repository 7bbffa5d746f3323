package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/id"
)

const modelsYAML = `
models:
  - name: composed
    label: Inhabitants
    fields:
      - {name: country, type: string}
      - {name: city, type: string}
      - {name: inhabitant, type: integer, readOnly: true}
    counters:
      - name: inhabitant_counter
        field: inhabitant
        referenceFields: [country, city]
  - name: main
    fields:
      - {name: name, type: string}
    counters:
      - {}
  - name: manual
    fields:
      - {name: like, type: integer}
    counters:
      - {field: like, manual: true}
`

func TestParse(t *testing.T) {
	reg, err := Parse([]byte(modelsYAML))
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"composed", "main", "manual"}, []string{list[0].Name, list[1].Name, list[2].Name})

	composed, ok := reg.Get("composed")
	require.True(t, ok)
	schema := composed.Schema()
	assert.True(t, schema.Has("city"))
	assert.True(t, schema.Has("id"))

	b := composed.Bindings()[0]
	assert.Equal(t, "inhabitant_counter", b.CounterName)
	assert.Equal(t, []string{"country", "city"}, b.ReferenceFields)
	assert.True(t, b.HooksEnabled())

	main, _ := reg.Get("main")
	assert.Equal(t, "main_id", main.Bindings()[0].CounterName)

	manual, _ := reg.Get("manual")
	assert.False(t, manual.Bindings()[0].HooksEnabled())
	assert.Equal(t, "manual_like", manual.Bindings()[0].CounterName)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown key":        "models:\n  - name: a\n    colour: red\n",
		"undeclared ref":     "models:\n  - name: a\n    fields: [{name: n}]\n    counters: [{field: n, referenceFields: [x]}]\n",
		"undeclared counter": "models:\n  - name: a\n    counters: [{field: n}]\n",
		"duplicate model":    "models:\n  - name: a\n  - name: a\n",
		"duplicate field":    "models:\n  - name: a\n    fields: [{name: n}, {name: n}]\n",
		"bad type":           "models:\n  - name: a\n    fields: [{name: n, type: blob}]\n",
		"missing name":       "models:\n  - fields: [{name: n}]\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("models:\n  - name: a\n    counters: [{field: n}]\n"))
	assert.True(t, apperror.IsConfiguration(err))
}

func TestParse_Empty(t *testing.T) {
	reg, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, reg.List())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(modelsYAML), 0o600))

	reg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, reg.List(), 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

type audit struct {
	CreatedAt time.Time
}

type invoice struct {
	audit
	ID       id.ID
	Customer string
	Year     int
	Number   int64  `autoinc:"name=invoice_number,ref=Customer|Year"`
	Like     *int32 `autoinc:"manual"`
	Total    decimal.Decimal
	Paid     bool
	Scratch  string `db:"-"`
	internal string
}

func TestInspect(t *testing.T) {
	def := Inspect(&invoice{}, "")

	assert.Equal(t, "invoice", def.Name)

	types := make(map[string]FieldType)
	for _, f := range def.Fields {
		types[f.Name] = f.Type
	}
	assert.Equal(t, map[string]FieldType{
		"ID":        TypeReference,
		"Customer":  TypeString,
		"Year":      TypeInteger,
		"Number":    TypeInteger,
		"Like":      TypeInteger,
		"Total":     TypeNumber,
		"Paid":      TypeBoolean,
		"CreatedAt": TypeDate,
	}, types)

	require.Len(t, def.Counters, 2)
	assert.Equal(t, CounterDef{Name: "invoice_number", Field: "Number", ReferenceFields: []string{"Customer", "Year"}}, def.Counters[0])
	assert.Equal(t, CounterDef{Field: "Like", Manual: true}, def.Counters[1])

	require.NoError(t, def.Validate())
}

func TestDefaults(t *testing.T) {
	reg := Defaults()
	require.Len(t, reg.List(), 3)

	manual, ok := reg.Get("manual")
	require.True(t, ok)
	assert.False(t, manual.Bindings()[0].HooksEnabled())

	main, _ := reg.Get("main")
	assert.Equal(t, "main_id", main.Bindings()[0].CounterName)
}

func TestLoadOrDefault(t *testing.T) {
	reg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Len(t, reg.List(), 3)

	_, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEntityDef_IsReadOnly(t *testing.T) {
	def := Inspect(&invoice{}, "")

	for _, field := range []string{"id", "ID", "CreatedAt", "Number", "Like"} {
		assert.True(t, def.IsReadOnly(field), field)
	}
	for _, field := range []string{"Customer", "Year", "missing"} {
		assert.False(t, def.IsReadOnly(field), field)
	}

	plain := EntityDef{Name: "main", Fields: []FieldDef{{Name: "name"}}, Counters: []CounterDef{{}}}
	assert.True(t, plain.IsReadOnly("id"))
	assert.False(t, plain.IsReadOnly("name"))
}
