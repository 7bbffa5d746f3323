package entity

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"maps"
)

// Fields represents document field values stored as JSONB.
// Implements sql.Scanner and driver.Valuer for PostgreSQL JSONB mapping.
//
// Numbers are decoded as json.Number so that integer counters keep their
// exact value after a round trip.
type Fields map[string]any

// Scan implements sql.Scanner for reading from PostgreSQL JSONB.
func (f *Fields) Scan(src any) error {
	if src == nil {
		*f = nil
		return nil
	}

	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Fields: %T", src)
	}

	if len(source) == 0 {
		*f = nil
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(source))
	decoder.UseNumber()

	var result map[string]any
	if err := decoder.Decode(&result); err != nil {
		return fmt.Errorf("failed to decode Fields: %w", err)
	}

	*f = result
	return nil
}

// Value implements driver.Valuer for writing to PostgreSQL JSONB.
func (f Fields) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

// Int returns an integer value, handling json.Number correctly.
func (f Fields) Int(key string) (int64, bool) {
	switch v := f[key].(type) {
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), v == float64(int64(v))
	}
	return 0, false
}

// Has checks if key exists (including nil values).
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Clone creates a shallow copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	return maps.Clone(f)
}
