package normalizer

import (
	"strconv"
	"strings"
)

// Object wraps a decoded JSON object for explicit optional-field access.
// Every getter reports presence instead of propagating zero values, so rules
// can spell out their fallbacks. All methods are safe on a nil map.
type Object map[string]interface{}

// AsObject converts a decoded JSON value into an Object when it is one.
func AsObject(v interface{}) (Object, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return Object(m), true
	case Object:
		return m, true
	default:
		return nil, false
	}
}

// Value returns the raw value for key. Present-but-nil counts as absent.
func (o Object) Value(key string) (interface{}, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns the value for key when it is a non-empty string.
func (o Object) String(key string) (string, bool) {
	v, ok := o.Value(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Stringify renders a scalar value for key as a string. JSON numbers decode
// as float64; integral values are rendered without an exponent so numeric
// ids survive the trip.
func (o Object) Stringify(key string) (string, bool) {
	v, ok := o.Value(key)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// Object returns the nested object for key.
func (o Object) Object(key string) (Object, bool) {
	v, ok := o.Value(key)
	if !ok {
		return nil, false
	}
	return AsObject(v)
}

// Slice returns the array value for key.
func (o Object) Slice(key string) ([]interface{}, bool) {
	v, ok := o.Value(key)
	if !ok {
		return nil, false
	}
	s, ok := v.([]interface{})
	return s, ok
}

// FirstString probes keys in order and returns the first non-empty scalar
// rendered as a string.
func (o Object) FirstString(keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := o.Stringify(key); ok {
			return s, true
		}
	}
	return "", false
}

// Has reports whether key is present with a non-nil value.
func (o Object) Has(key string) bool {
	_, ok := o.Value(key)
	return ok
}

// putString copies a non-empty string field into props under name.
func putString(props map[string]interface{}, name, value string) {
	if value != "" {
		props[name] = value
	}
}

// putValue copies a present raw value into props under name.
func putValue(props map[string]interface{}, name string, o Object, key string) {
	if v, ok := o.Value(key); ok {
		props[name] = v
	}
}

// kebabCase lowercases s and collapses runs of whitespace into single
// hyphens, e.g. "Acme  Corp" -> "acme-corp".
func kebabCase(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

// slugKey lowercases s and replaces every non-alphanumeric rune with an
// underscore, matching the custom-question property convention.
func slugKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
