package resource

import (
	"fmt"
	"math"
	"sort"
)

// Fields is the payload tree of one resource. Values are the self-describing
// kinds both payload codecs agree on: nil, bool, integers, floats, strings,
// bytes, []any and nested Fields.
type Fields map[string]any

// Has reports whether key is present, including when its value is nil
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Raw returns the value stored under key
func (f Fields) Raw(key string) (any, bool) {
	v, ok := f[key]
	return v, ok
}

// Keys returns the field names in sorted order
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f Fields) lookup(key string) (any, error) {
	v, ok := f[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return v, nil
}

func typeError(key string, want string, got any) error {
	return fmt.Errorf("%w: %s: want %s, got %T", ErrFieldType, key, want, got)
}

// String returns a string field
func (f Fields) String(key string) (string, error) {
	v, err := f.lookup(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(key, "string", v)
	}
	return s, nil
}

// Int returns an integer field, whatever width the codec produced
func (f Fields) Int(key string) (int64, error) {
	v, err := f.lookup(key)
	if err != nil {
		return 0, err
	}
	n, ok := ToInt64(v)
	if !ok {
		return 0, typeError(key, "integer", v)
	}
	return n, nil
}

// Float returns a numeric field as float64
func (f Fields) Float(key string) (float64, error) {
	v, err := f.lookup(key)
	if err != nil {
		return 0, err
	}
	x, ok := ToFloat64(v)
	if !ok {
		return 0, typeError(key, "number", v)
	}
	return x, nil
}

// Bool returns a boolean field
func (f Fields) Bool(key string) (bool, error) {
	v, err := f.lookup(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, typeError(key, "bool", v)
	}
	return b, nil
}

// Bytes returns a byte field. Text payloads may carry bytes as a string or
// as a sequence of small integers.
func (f Fields) Bytes(key string) ([]byte, error) {
	v, err := f.lookup(key)
	if err != nil {
		return nil, err
	}
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case []any:
		out := make([]byte, len(b))
		for i, e := range b {
			n, ok := ToInt64(e)
			if !ok || n < 0 || n > math.MaxUint8 {
				return nil, typeError(key, "bytes", v)
			}
			out[i] = byte(n)
		}
		return out, nil
	}
	return nil, typeError(key, "bytes", v)
}

// List returns a sequence field. nil decodes as an empty list.
func (f Fields) List(key string) ([]any, error) {
	v, err := f.lookup(key)
	if err != nil {
		return nil, err
	}
	switch l := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return l, nil
	}
	return nil, typeError(key, "list", v)
}

// Map returns a nested object field. A nil value yields a nil Fields with no
// error so callers can tell an absent object from an empty one.
func (f Fields) Map(key string) (Fields, error) {
	v, err := f.lookup(key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	m, ok := AsFields(v)
	if !ok {
		return nil, typeError(key, "map", v)
	}
	return m, nil
}

// StringSlice returns a list of strings
func (f Fields) StringSlice(key string) ([]string, error) {
	l, err := f.List(key)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(l))
	for i, e := range l {
		s, ok := e.(string)
		if !ok {
			return nil, typeError(fmt.Sprintf("%s[%d]", key, i), "string", e)
		}
		out[i] = s
	}
	return out, nil
}

// IntSlice returns a list of integers
func (f Fields) IntSlice(key string) ([]int64, error) {
	l, err := f.List(key)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(l))
	for i, e := range l {
		n, ok := ToInt64(e)
		if !ok {
			return nil, typeError(fmt.Sprintf("%s[%d]", key, i), "integer", e)
		}
		out[i] = n
	}
	return out, nil
}

// ToInt64 converts any integer kind, and integral floats, to int64
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	}
	return 0, false
}

func floatToInt(x float64) (int64, bool) {
	if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
		return 0, false
	}
	return int64(x), true
}

// ToFloat64 converts any numeric kind to float64
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := ToInt64(v); ok {
		return float64(i), true
	}
	if u, ok := v.(uint64); ok {
		return float64(u), true
	}
	return 0, false
}

// AsFields converts a decoded mapping to Fields. Keys must be strings.
func AsFields(v any) (Fields, bool) {
	switch m := v.(type) {
	case Fields:
		return m, true
	case map[string]any:
		return Fields(m), true
	case map[any]any:
		out := make(Fields, len(m))
		for k, e := range m {
			s, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[s] = e
		}
		return out, true
	}
	return nil, false
}

// Normalize rewrites a decoded tree so every mapping is Fields and every
// sequence is []any. Empty mappings stay non-nil.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case Fields, map[string]any, map[any]any:
		m, ok := AsFields(t)
		if !ok {
			return nil, fmt.Errorf("%w: mapping with non-string key", ErrFieldType)
		}
		out := make(Fields, len(m))
		for k, e := range m {
			n, err := Normalize(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := Normalize(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	}
	return v, nil
}
