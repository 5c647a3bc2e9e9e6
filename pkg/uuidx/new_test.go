package uuidx

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New()
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotEqual(t, uuid.Nil, id)
}

func TestNewString(t *testing.T) {
	s := NewString()
	parsed, err := uuid.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for range 100 {
		s := NewString()
		_, dup := seen[s]
		require.False(t, dup, "generated duplicate uuid %s", s)
		seen[s] = struct{}{}
	}
}
