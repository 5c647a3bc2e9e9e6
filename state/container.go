// Package state implements an immutable, serialization-backed key/value
// container and its write-only builder. Every value crosses an encode/decode
// round trip on the way in and on the way out, so no two holders of a
// container can alias each other's data. Containers nest: a container stored
// under a key can be promoted back into a live sub-builder.
//
// Containers are the unit of both producer arguments and persisted broker
// state; their byte encoding is stable enough to survive a host restart.
package state

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"sort"

	json "github.com/goccy/go-json"

	"github.com/casualjim/relay/pkg/jsonx"
)

// SerializationError reports a value that could not be marshaled or
// unmarshaled for a given key.
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("state: serialize %q: %v", e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// State is an immutable mapping from string keys to opaque encoded blobs.
// The zero value is usable and equal to Empty().
type State struct {
	blobs map[string][]byte
}

// Empty returns a container with no entries.
func Empty() State {
	return State{}
}

// Of constructs a container from alternating key/value arguments. It panics
// when given an odd number of arguments and returns a SerializationError when
// a value cannot be encoded.
func Of(pairs ...any) (State, error) {
	if len(pairs)%2 != 0 {
		panic("state: Of requires alternating key/value pairs")
	}
	blobs := make(map[string][]byte, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("state: Of key at position %d is %T, not string", i, pairs[i]))
		}
		b, err := jsonx.Encode(pairs[i+1])
		if err != nil {
			return State{}, &SerializationError{Key: key, Err: err}
		}
		blobs[key] = b
	}
	return State{blobs: blobs}, nil
}

// MustOf is Of, panicking on encoding failure.
func MustOf(pairs ...any) State {
	s, err := Of(pairs...)
	if err != nil {
		panic(err)
	}
	return s
}

// FromBytes reconstructs a container from the encoding produced by Bytes.
func FromBytes(b []byte) (State, error) {
	var s State
	if err := s.UnmarshalJSON(b); err != nil {
		return State{}, err
	}
	return s, nil
}

// Get returns a fresh deep copy of the value stored under key, decoded as T.
// An absent key yields def with a nil error. A blob that cannot be decoded
// as T yields a SerializationError.
func Get[T any](s State, key string, def T) (T, error) {
	b, ok := s.blobs[key]
	if !ok {
		return def, nil
	}
	v, err := jsonx.Decode[T](b)
	if err != nil {
		var zero T
		return zero, &SerializationError{Key: key, Err: err}
	}
	return v, nil
}

// Contains reports whether the container holds an entry for key.
func (s State) Contains(key string) bool {
	_, ok := s.blobs[key]
	return ok
}

// Keys returns the container's keys in sorted order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (s State) Len() int {
	return len(s.blobs)
}

// Equal reports whether both containers hold byte-for-byte identical blob
// maps.
func (s State) Equal(other State) bool {
	if len(s.blobs) != len(other.blobs) {
		return false
	}
	for k, b := range s.blobs {
		ob, ok := other.blobs[k]
		if !ok || !bytes.Equal(b, ob) {
			return false
		}
	}
	return true
}

// Hash returns an FNV-1a digest over the sorted key/blob pairs. Containers
// that are Equal hash identically.
func (s State) Hash() uint64 {
	h := fnv.New64a()
	for _, k := range s.Keys() {
		_, _ = h.Write([]byte(k))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(s.blobs[k])
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// ToBuilder returns a builder seeded with the container's entries.
func (s State) ToBuilder() *Builder {
	b := NewBuilder()
	for k, blob := range s.blobs {
		b.blobs[k] = blob
	}
	return b
}

// Bytes returns the container's canonical byte encoding, suitable for the
// host's persistence boundary.
func (s State) Bytes() ([]byte, error) {
	return s.MarshalJSON()
}

// MarshalJSON encodes the container as a JSON object of base64 blobs.
func (s State) MarshalJSON() ([]byte, error) {
	if s.blobs == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.blobs)
}

// UnmarshalJSON decodes a container from the form produced by MarshalJSON.
func (s *State) UnmarshalJSON(b []byte) error {
	blobs := make(map[string][]byte)
	if err := json.Unmarshal(b, &blobs); err != nil {
		return err
	}
	s.blobs = blobs
	return nil
}

// String renders the container's keys for logging. Blob contents stay opaque.
func (s State) String() string {
	return fmt.Sprintf("state.State%v", s.Keys())
}
