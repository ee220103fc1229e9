package parser

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Payload is the opaque, untyped JSON object a webhook delivered.
//
// Accessors are forgiving on purpose: a missing or mistyped field reads as
// the zero value. Shape enforcement belongs in each parser's Validate.
type Payload map[string]any

// FromJSON decodes b into a Payload. Only a top-level JSON object is
// accepted; anything else (array, scalar, empty body) is an error.
func FromJSON(b []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("payload is not a JSON object")
	}
	return p, nil
}

// Has reports whether the key is present at the top level, whatever its type.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the string value at key, or "" when absent or not a string.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Map returns the object value at key, or nil.
func (p Payload) Map(key string) Payload {
	switch m := p[key].(type) {
	case map[string]any:
		return Payload(m)
	case Payload:
		return m
	}
	return nil
}

// Slice returns the array value at key, or nil.
func (p Payload) Slice(key string) []any {
	s, _ := p[key].([]any)
	return s
}

// Number returns the numeric value at key.
func (p Payload) Number(key string) (float64, bool) {
	switch n := p[key].(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Int returns the integer value at key, truncating fractions.
func (p Payload) Int(key string) (int64, bool) {
	f, ok := p.Number(key)
	return int64(f), ok
}

// Bool returns the boolean value at key, or false.
func (p Payload) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// Lookup walks nested objects along path, returning the leaf value.
func (p Payload) Lookup(path ...string) (any, bool) {
	cur := p
	for i, key := range path {
		if cur == nil {
			return nil, false
		}
		if i == len(path)-1 {
			v, ok := cur[key]
			return v, ok
		}
		cur = cur.Map(key)
	}
	return nil, false
}

// StringAt is Lookup for string leaves.
func (p Payload) StringAt(path ...string) string {
	v, ok := p.Lookup(path...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// JSON renders the payload compactly, for fallback bodies and diagnostics.
func (p Payload) JSON() string {
	b, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(b)
}
