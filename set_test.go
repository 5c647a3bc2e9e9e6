package relay

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/relay/broker"
	"github.com/casualjim/relay/state"
)

func TestSetConnectionGetOrCreate(t *testing.T) {
	set, err := NewSet[int]()
	require.NoError(t, err)

	a, err := set.Connection("first")
	require.NoError(t, err)
	b, err := set.Connection("first")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, set.Len())
	assert.Equal(t, "connections/first", a.Key())
}

func TestSetNameValidation(t *testing.T) {
	_, err := NewSet[int](WithSetName[int](""))
	require.Error(t, err)

	set, err := NewSet[int](WithSetName[int]("workspace"))
	require.NoError(t, err)
	assert.Equal(t, "workspace", set.Name())
}

func TestSetLaunchAndAttach(t *testing.T) {
	var invocations atomic.Int32
	set, err := NewSet[int](WithSetFactory(countingFactory(&invocations)))
	require.NoError(t, err)

	require.NoError(t, set.Launch("counter", state.MustOf("from", 4)))
	sub, err := set.Attach(context.Background(), "counter")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Equal(t, 4, nextValue(t, sub))
	assert.Equal(t, int32(1), invocations.Load())
}

func TestSetIDsInsertionOrder(t *testing.T) {
	set, err := NewSet[int]()
	require.NoError(t, err)

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		_, err := set.Connection(id)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, set.IDs())
}

func TestSetPersistRestoreAcrossRestart(t *testing.T) {
	var invocations atomic.Int32
	factory := countingFactory(&invocations)

	set, err := NewSet[int](WithSetFactory(factory))
	require.NoError(t, err)
	require.NoError(t, set.Launch("a", state.MustOf("from", 1)))
	require.NoError(t, set.Launch("b", state.MustOf("from", 2)))

	saved, err := set.Persist()
	require.NoError(t, err)

	// Host goes away: state crosses the persistence boundary as bytes.
	raw, err := saved.Bytes()
	require.NoError(t, err)
	set.DismissAll()
	invocations.Store(0)

	restoredState, err := state.FromBytes(raw)
	require.NoError(t, err)

	// Fresh set, fresh registry: the recreated host supplies the factory
	// again, but nothing starts until the first attach.
	next, err := NewSet[int](WithSetFactory(factory))
	require.NoError(t, err)
	require.NoError(t, next.Restore(restoredState))
	assert.Equal(t, int32(0), invocations.Load(), "restore must not start producers")
	assert.Equal(t, []string{"a", "b"}, next.IDs())

	subA, err := next.Attach(context.Background(), "a")
	require.NoError(t, err)
	defer subA.Unsubscribe()
	subB, err := next.Attach(context.Background(), "b")
	require.NoError(t, err)
	defer subB.Unsubscribe()

	assert.Equal(t, 1, nextValue(t, subA))
	assert.Equal(t, 2, nextValue(t, subB))
	assert.Equal(t, int32(2), invocations.Load())
}

func TestSetRestoreIntoExistingConnections(t *testing.T) {
	var invocations atomic.Int32
	set, err := NewSet[int](WithSetFactory(countingFactory(&invocations)))
	require.NoError(t, err)
	require.NoError(t, set.Launch("keep", state.MustOf("from", 8)))

	saved, err := set.Persist()
	require.NoError(t, err)
	set.Dismiss("keep")

	// Restoring over the same set re-records the argument on the existing
	// connection rather than creating a duplicate.
	require.NoError(t, set.Restore(saved))
	assert.Equal(t, 1, set.Len())

	sub, err := set.Attach(context.Background(), "keep")
	require.NoError(t, err)
	defer sub.Unsubscribe()
	assert.Equal(t, 8, nextValue(t, sub))
}

func TestSetDismissAll(t *testing.T) {
	var invocations atomic.Int32
	reg := broker.NewRegistry[int]()
	set, err := NewSet[int](
		WithSetRegistry(reg),
		WithSetFactory(countingFactory(&invocations)),
	)
	require.NoError(t, err)

	require.NoError(t, set.Launch("a", state.MustOf("from", 1)))
	require.NoError(t, set.Launch("b", state.MustOf("from", 2)))
	require.Len(t, reg.Keys(), 2)

	set.DismissAll()
	assert.Empty(t, reg.Keys())
	assert.Equal(t, 2, set.Len(), "dismissed connections stay in the set")
}

func TestSetDismissUnknownIDIsNoop(t *testing.T) {
	set, err := NewSet[int]()
	require.NoError(t, err)
	assert.NotPanics(t, func() { set.Dismiss("ghost") })
}
