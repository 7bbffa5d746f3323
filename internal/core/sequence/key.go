package sequence

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/entity"
)

// BuildKey derives the counter identifier for a document.
//
// Without reference fields the id is the counter name. With reference fields
// the JSON array of their current values, in declared order, is appended:
//
//	inhabitant_counter["France","Paris"]
//
// Documents with equal reference values share a counter; any difference in a
// value yields a different counter. The document is only read.
func BuildKey(b Binding, doc entity.Document) (string, error) {
	if b.CounterName == "" || b.IncField == "" {
		return "", apperror.NewConfiguration("counter binding is not resolved").
			WithDetail("model", b.ModelName)
	}
	if !doc.HasField(b.IncField) {
		return "", apperror.NewConfiguration("counter field not declared by model").
			WithDetail("model", doc.Model()).
			WithDetail("field", b.IncField)
	}
	if len(b.ReferenceFields) == 0 {
		return b.CounterName, nil
	}

	values := make([]any, len(b.ReferenceFields))
	for i, ref := range b.ReferenceFields {
		if !doc.HasField(ref) {
			return "", apperror.NewConfiguration("reference field not declared by model").
				WithDetail("model", doc.Model()).
				WithDetail("field", ref)
		}
		v, _ := doc.Get(ref)
		values[i] = canonicalValue(v)
	}

	encoded, err := encodeValues(values)
	if err != nil {
		return "", apperror.NewConfiguration("reference values cannot be encoded").
			WithDetail("model", doc.Model()).
			WithDetail("fields", b.ReferenceFields).
			WithCause(err)
	}
	return b.CounterName + encoded, nil
}

// canonicalValue maps equivalent representations onto one JSON form.
func canonicalValue(v any) any {
	switch val := v.(type) {
	case decimal.Decimal:
		return json.Number(val.String())
	case *decimal.Decimal:
		if val == nil {
			return nil
		}
		return json.Number(val.String())
	case time.Time:
		return val.UTC()
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC()
	}
	return v
}

func encodeValues(values []any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
