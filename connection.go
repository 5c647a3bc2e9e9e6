package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fogfish/opts"

	"github.com/casualjim/relay/broker"
	"github.com/casualjim/relay/channel"
	"github.com/casualjim/relay/pkg/stdx"
	"github.com/casualjim/relay/state"
)

// ErrNoFactory is returned by Attach when no producer factory is bound and no
// live registry entry exists for the connection's key. This is a programmer
// error: either bind a factory at construction or use AttachWith.
var ErrNoFactory = errors.New("relay: no producer factory bound")

const argumentKey = "argument"

// Connection binds one key to a replay mode, a producer factory, and the
// argument recorded by the most recent Launch. It is the per-key façade over
// the registry: Launch and Attach start the producer at most once between
// construction and Dismiss, and a Connection outlives its producer, so the
// same instance drives any number of start/dismiss cycles.
//
// A Connection is safe for concurrent use.
type Connection[T any] struct {
	key        string
	registry   *broker.Registry[T]
	mode       channel.Mode
	buffer     int
	maxPending int

	mu      sync.Mutex
	factory broker.Factory[T]
	arg     state.State
	hasArg  bool
}

// New creates a Connection for key. Without WithRegistry the connection owns
// a private registry; pass a shared one to multiplex several connections
// over the same process-wide entry space.
func New[T any](key string, options ...opts.Option[Connection[T]]) (*Connection[T], error) {
	if key == "" {
		return nil, errors.New("relay: connection key is required")
	}
	c := &Connection[T]{
		key:  key,
		mode: channel.Latest,
		arg:  state.Empty(),
	}
	if err := opts.Apply(c, options); err != nil {
		return nil, err
	}
	if c.registry == nil {
		c.registry = broker.NewRegistry[T]()
	}
	return c, nil
}

// Key returns the connection's key.
func (c *Connection[T]) Key() string { return c.key }

// Live reports whether a producer entry currently exists for the key.
func (c *Connection[T]) Live() bool { return c.registry.Has(c.key) }

// Argument returns the argument recorded by the most recent Launch, and
// whether one has been recorded since construction or the last Dismiss.
func (c *Connection[T]) Argument() (state.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arg, c.hasArg
}

// Launch records arg and starts the producer if no entry exists for the key
// and a factory is bound. Launching while the producer is live re-records
// the argument but never restarts: the new argument takes effect on the next
// Dismiss plus Launch/Attach cycle. When no factory is bound yet, the
// argument is recorded and the producer starts lazily on the first
// AttachWith.
func (c *Connection[T]) Launch(arg state.State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.arg = arg
	c.hasArg = true

	if c.factory == nil || c.registry.Has(c.key) {
		return
	}
	c.ensureLocked()
}

// Attach subscribes a new consumer to the connection's notifications,
// starting the producer with the recorded argument if no entry exists yet.
// Attaching before any Launch starts the producer with an empty argument.
// The subscription ends when Unsubscribe is called or ctx is canceled.
func (c *Connection[T]) Attach(ctx context.Context) (*channel.Subscription[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachLocked(ctx)
}

// AttachWith binds factory and then attaches. Factories are stateless, so
// supplying a fresh one after a host restart reconnects to a surviving
// producer or lazily starts a new one from the restored argument.
func (c *Connection[T]) AttachWith(ctx context.Context, factory broker.Factory[T]) (*channel.Subscription[T], error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: connection %q", ErrNoFactory, c.key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factory = factory
	return c.attachLocked(ctx)
}

func (c *Connection[T]) attachLocked(ctx context.Context) (*channel.Subscription[T], error) {
	if ch, ok := c.registry.Get(c.key); ok {
		return ch.Subscribe(ctx), nil
	}
	if c.factory == nil {
		return nil, fmt.Errorf("%w: connection %q", ErrNoFactory, c.key)
	}
	return c.ensureLocked().Subscribe(ctx), nil
}

// ensureLocked resolves or creates the registry entry for the key. The
// argument is captured at call time: a later Launch does not affect an
// already-running producer.
func (c *Connection[T]) ensureLocked() *channel.Multicast[T] {
	factory := c.factory
	arg := c.arg
	return c.registry.GetOrCreate(c.key,
		func() *channel.Multicast[T] {
			return channel.New[T](c.mode,
				channel.WithBuffer(c.buffer),
				channel.WithMaxPending(c.maxPending))
		},
		func() broker.Producer[T] { return factory(arg) },
	)
}

// Dismiss tears down the registry entry and forgets the recorded argument. A
// subsequent Launch or Attach starts a brand-new producer. Dismissing a
// connection with no live entry is a no-op apart from clearing the argument.
func (c *Connection[T]) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.Teardown(c.key)
	c.arg = state.Empty()
	c.hasArg = false
}

// InstanceState captures what must survive a host restart: the recorded
// argument. Feed it back through WithInstanceState (or ConnectionSet.Restore)
// on the next incarnation.
func (c *Connection[T]) InstanceState() state.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := state.NewBuilder()
	if c.hasArg {
		// A State value always encodes cleanly.
		stdx.Must0(b.Put(argumentKey, c.arg))
	}
	return b.Build()
}

func (c *Connection[T]) restoreState(saved state.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !saved.Contains(argumentKey) {
		return nil
	}
	arg, err := state.Get(saved, argumentKey, state.Empty())
	if err != nil {
		return err
	}
	c.arg = arg
	c.hasArg = true
	return nil
}
