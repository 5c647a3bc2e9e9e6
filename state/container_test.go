package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfAndGet(t *testing.T) {
	s, err := Of("from", 10, "name", "tick")
	require.NoError(t, err)

	from, err := Get(s, "from", 0)
	require.NoError(t, err)
	assert.Equal(t, 10, from)

	name, err := Get(s, "name", "")
	require.NoError(t, err)
	assert.Equal(t, "tick", name)
}

func TestGetAbsentReturnsDefault(t *testing.T) {
	s := Empty()
	v, err := Get(s, "missing", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestGetDeepCopyIsolation(t *testing.T) {
	src := []int{1, 2, 3}
	s := MustOf("xs", src)

	// Mutating the source after construction must not leak into the container.
	src[0] = 99
	first, err := Get(s, "xs", []int(nil))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, first)

	// Every Get returns a fresh copy; callers cannot alias through it.
	first[1] = 77
	second, err := Get(s, "xs", []int(nil))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, second)
}

func TestOfOddArityPanics(t *testing.T) {
	assert.Panics(t, func() { _, _ = Of("key") })
	assert.Panics(t, func() { _, _ = Of(1, "value") })
}

func TestOfUnsupportedValue(t *testing.T) {
	_, err := Of("fn", func() {})
	require.Error(t, err)

	var serr *SerializationError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "fn", serr.Key)
}

func TestKeysSortedAndLen(t *testing.T) {
	s := MustOf("b", 2, "a", 1, "c", 3)
	assert.Equal(t, []string{"a", "b", "c"}, s.Keys())
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains("b"))
	assert.False(t, s.Contains("z"))
}

func TestEqualAndHash(t *testing.T) {
	a := MustOf("x", 1, "y", "two")
	b := MustOf("y", "two", "x", 1)
	c := MustOf("x", 2)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(Empty()))
	assert.True(t, Empty().Equal(Empty()))
}

func TestBytesRoundTrip(t *testing.T) {
	s := MustOf("x", 1, "nested", MustOf("y", "deep"))

	raw, err := s.Bytes()
	require.NoError(t, err)

	restored, err := FromBytes(raw)
	require.NoError(t, err)
	assert.True(t, s.Equal(restored))

	nested, err := Get(restored, "nested", Empty())
	require.NoError(t, err)
	y, err := Get(nested, "y", "")
	require.NoError(t, err)
	assert.Equal(t, "deep", y)
}

func TestFromBytesInvalid(t *testing.T) {
	_, err := FromBytes([]byte(`not json`))
	require.Error(t, err)
}

func TestGetWrongShape(t *testing.T) {
	s := MustOf("x", "not a number")
	_, err := Get(s, "x", 0)
	require.Error(t, err)

	var serr *SerializationError
	assert.ErrorAs(t, err, &serr)
}
