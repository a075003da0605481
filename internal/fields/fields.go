// Package fields provides safe typed access to decoded message field maps.
package fields

import (
	"fmt"
	"time"
)

// Map holds the named fields of one decoded message. A nil value means the
// decoder saw the field but its content was the device's invalid/unset
// sentinel; an absent key means the field was not present at all. Both are
// treated as "no value" by the accessors.
type Map map[string]any

// TypeMismatchError reports a field whose value does not have the expected shape.
type TypeMismatchError struct {
	Field string
	Want  string
	Got   any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %q: want %s, got %T", e.Field, e.Want, e.Got)
}

// Get returns the value stored under name, or def when the field is absent or unset.
func (m Map) Get(name string, def any) any {
	v, ok := m[name]
	if !ok || v == nil {
		return def
	}
	return v
}

// Has reports whether name carries a usable (non-nil) value.
func (m Map) Has(name string) bool {
	v, ok := m[name]
	return ok && v != nil
}

// String returns the string value of name, or "" when absent.
func (m Map) String(name string) (string, error) {
	v, ok := m[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeMismatchError{Field: name, Want: "string", Got: v}
	}
	return s, nil
}

// Float returns the numeric value of name coerced to float64. The second
// return is false when the field is absent or unset. Decoders hand us a mix
// of integer widths and float64 (JSON), so any numeric kind is accepted.
func (m Map) Float(name string) (float64, bool, error) {
	v, ok := m[name]
	if !ok || v == nil {
		return 0, false, nil
	}
	f, ok := AsFloat(v)
	if !ok {
		return 0, false, &TypeMismatchError{Field: name, Want: "number", Got: v}
	}
	return f, true, nil
}

// Int returns the numeric value of name truncated to int64.
func (m Map) Int(name string) (int64, bool, error) {
	f, ok, err := m.Float(name)
	return int64(f), ok, err
}

// Time returns the time value of name, or the zero time when absent.
func (m Map) Time(name string) (time.Time, error) {
	v, ok := m[name]
	if !ok || v == nil {
		return time.Time{}, nil
	}
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, &TypeMismatchError{Field: name, Want: "time", Got: v}
		}
		return parsed, nil
	default:
		return time.Time{}, &TypeMismatchError{Field: name, Want: "time", Got: v}
	}
}

// List returns the list value of name. Scalar-only fields are a mismatch;
// absent fields return nil.
func (m Map) List(name string) ([]any, error) {
	v, ok := m[name]
	if !ok || v == nil {
		return nil, nil
	}
	l, ok := v.([]any)
	if !ok {
		return nil, &TypeMismatchError{Field: name, Want: "list", Got: v}
	}
	return l, nil
}

// AsFloat coerces any numeric kind to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
