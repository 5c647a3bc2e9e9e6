package state

import (
	"github.com/casualjim/relay/pkg/jsonx"
	"github.com/casualjim/relay/pkg/stdx"
)

// Builder is the write-only companion of State. It accumulates key/value
// pairs and nested child builders, and materializes an immutable snapshot on
// Build. A Builder is not safe for concurrent use.
type Builder struct {
	blobs    map[string][]byte
	children map[string]*Builder
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		blobs:    make(map[string][]byte),
		children: make(map[string]*Builder),
	}
}

// Put encodes value and stores it under key, replacing any previous entry.
// Encoding happens eagerly so a SerializationError surfaces at the call
// site, not at Build.
func (b *Builder) Put(key string, value any) error {
	blob, err := jsonx.Encode(value)
	if err != nil {
		return &SerializationError{Key: key, Err: err}
	}
	b.blobs[key] = blob
	return nil
}

// Remove drops the entry and any child builder stored under key.
func (b *Builder) Remove(key string) *Builder {
	delete(b.blobs, key)
	delete(b.children, key)
	return b
}

// Child returns the nested builder for key, creating it if needed. When the
// key currently holds a blob that decodes as a State, that container is
// promoted into a live sub-builder and the blob is removed, so subsequent
// writes are unambiguous. A blob that does not decode as a State is replaced
// by an empty sub-builder.
func (b *Builder) Child(key string) *Builder {
	if child, ok := b.children[key]; ok {
		return child
	}
	if blob, ok := b.blobs[key]; ok {
		delete(b.blobs, key)
		if nested, err := jsonx.Decode[State](blob); err == nil {
			child := nested.ToBuilder()
			b.children[key] = child
			return child
		}
	}
	child := NewBuilder()
	b.children[key] = child
	return child
}

// Build materializes the builder and all pending children, depth first, into
// an immutable State. Children built under a key overwrite a plain entry
// with the same key. Build is idempotent: repeated calls with no intervening
// mutation yield Equal containers, and the builder stays usable.
func (b *Builder) Build() State {
	blobs := make(map[string][]byte, len(b.blobs)+len(b.children))
	for k, blob := range b.blobs {
		blobs[k] = blob
	}
	for k, child := range b.children {
		// A built State always encodes cleanly; failure here is a bug.
		blobs[k] = stdx.Must1(jsonx.Encode(child.Build()))
	}
	return State{blobs: blobs}
}
