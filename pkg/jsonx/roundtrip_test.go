package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	type payload struct {
		Name  string   `json:"name"`
		Count int      `json:"count"`
		Tags  []string `json:"tags"`
	}

	in := payload{Name: "sample", Count: 3, Tags: []string{"a", "b"}}
	b, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode[payload](b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode[map[string]int]([]byte(`{"x":`))
	require.Error(t, err)
}

func TestRoundTripIsolation(t *testing.T) {
	in := map[string][]int{"xs": {1, 2, 3}}
	b, err := Encode(in)
	require.NoError(t, err)
	out, err := Decode[map[string][]int](b)
	require.NoError(t, err)
	require.Equal(t, in, out)

	in["xs"][0] = 99
	assert.Equal(t, 1, out["xs"][0])
}

func TestEncodeUnsupported(t *testing.T) {
	_, err := Encode(func() {})
	require.Error(t, err)
}
