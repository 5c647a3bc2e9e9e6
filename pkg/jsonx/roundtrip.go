// Package jsonx hosts the marshal/unmarshal primitive the rest of the module
// treats as opaque. Values cross the serialization boundary exactly once per
// read or write, which is what makes the state containers deep-copy safe.
package jsonx

import json "github.com/goccy/go-json"

// Encode returns the canonical byte encoding of v.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode reconstructs a value of type T from its canonical encoding.
func Decode[T any](b []byte) (T, error) {
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
