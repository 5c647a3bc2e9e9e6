package stdx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMust0(t *testing.T) {
	assert.NotPanics(t, func() { Must0(nil) })
	assert.Panics(t, func() { Must0(errors.New("boom")) })
}

func TestMust1(t *testing.T) {
	v := Must1(42, nil)
	require.Equal(t, 42, v)
	assert.Panics(t, func() { Must1(0, errors.New("boom")) })
}
