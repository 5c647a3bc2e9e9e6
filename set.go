package relay

import (
	"context"
	"sync"

	"github.com/fogfish/opts"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/casualjim/relay/broker"
	"github.com/casualjim/relay/channel"
	"github.com/casualjim/relay/state"
)

// ConnectionSet groups connections under application-chosen ids, shares one
// registry between them, and persists all their arguments as a single
// container. Connections are created on first use and kept in insertion
// order, so persisted state is deterministic.
//
// A ConnectionSet is safe for concurrent use.
type ConnectionSet[T any] struct {
	name       string
	registry   *broker.Registry[T]
	mode       channel.Mode
	buffer     int
	maxPending int
	factory    broker.Factory[T]

	mu    sync.Mutex
	conns *orderedmap.OrderedMap[string, *Connection[T]]
}

// NewSet creates a ConnectionSet. Without WithSetRegistry the set owns a
// private registry shared by its connections.
func NewSet[T any](options ...opts.Option[ConnectionSet[T]]) (*ConnectionSet[T], error) {
	s := &ConnectionSet[T]{
		name:  "connections",
		mode:  channel.Latest,
		conns: orderedmap.New[string, *Connection[T]](),
	}
	if err := opts.Apply(s, options); err != nil {
		return nil, err
	}
	if s.registry == nil {
		s.registry = broker.NewRegistry[T]()
	}
	return s, nil
}

// Name returns the set's namespace.
func (s *ConnectionSet[T]) Name() string { return s.name }

// Len returns the number of contained connections.
func (s *ConnectionSet[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns.Len()
}

// IDs returns the contained connection ids in insertion order.
func (s *ConnectionSet[T]) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, s.conns.Len())
	for pair := s.conns.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// Connection returns the connection for id, creating it on first use. A new
// connection inherits the set's registry, mode, buffer, and default factory;
// the given options are applied on top. Options are ignored for an existing
// connection.
func (s *ConnectionSet[T]) Connection(id string, options ...opts.Option[Connection[T]]) (*Connection[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionLocked(id, options...)
}

func (s *ConnectionSet[T]) connectionLocked(id string, options ...opts.Option[Connection[T]]) (*Connection[T], error) {
	if c, ok := s.conns.Get(id); ok {
		return c, nil
	}

	base := []opts.Option[Connection[T]]{
		WithRegistry[T](s.registry),
		WithMode[T](s.mode),
		WithBuffer[T](s.buffer),
		WithMaxPending[T](s.maxPending),
	}
	if s.factory != nil {
		base = append(base, WithFactory[T](s.factory))
	}

	c, err := New[T](s.name+"/"+id, append(base, options...)...)
	if err != nil {
		return nil, err
	}
	s.conns.Set(id, c)
	return c, nil
}

// Launch records arg for id and starts its producer if a factory is bound
// and no entry exists. See Connection.Launch for the idempotent-start rules.
func (s *ConnectionSet[T]) Launch(id string, arg state.State) error {
	c, err := s.Connection(id)
	if err != nil {
		return err
	}
	c.Launch(arg)
	return nil
}

// Attach subscribes a new consumer to the connection for id.
func (s *ConnectionSet[T]) Attach(ctx context.Context, id string) (*channel.Subscription[T], error) {
	c, err := s.Connection(id)
	if err != nil {
		return nil, err
	}
	return c.Attach(ctx)
}

// Dismiss tears down the connection for id, if it exists. The connection
// itself stays in the set and can be relaunched.
func (s *ConnectionSet[T]) Dismiss(id string) {
	s.mu.Lock()
	c, ok := s.conns.Get(id)
	s.mu.Unlock()
	if ok {
		c.Dismiss()
	}
}

// DismissAll tears down every contained connection. Used on irreversible
// host destruction.
func (s *ConnectionSet[T]) DismissAll() {
	s.mu.Lock()
	conns := make([]*Connection[T], 0, s.conns.Len())
	for pair := s.conns.Oldest(); pair != nil; pair = pair.Next() {
		conns = append(conns, pair.Value)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Dismiss()
	}
}

// Persist builds one container holding every connection's instance state
// under its id, ready to be embedded in the host's saved state.
func (s *ConnectionSet[T]) Persist() (state.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := state.NewBuilder()
	for pair := s.conns.Oldest(); pair != nil; pair = pair.Next() {
		if err := b.Put(pair.Key, pair.Value.InstanceState()); err != nil {
			return state.Empty(), err
		}
	}
	return b.Build(), nil
}

// Restore reconstructs connections from a container produced by Persist.
// Producers are not restarted: if the process survived, live registry
// entries are found lazily on the next attach; after a real restart, the
// next attach starts a fresh producer from the restored argument.
func (s *ConnectionSet[T]) Restore(saved state.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range saved.Keys() {
		inst, err := state.Get(saved, id, state.Empty())
		if err != nil {
			return err
		}
		if c, ok := s.conns.Get(id); ok {
			if err := c.restoreState(inst); err != nil {
				return err
			}
			continue
		}
		if _, err := s.connectionLocked(id, WithInstanceState[T](inst)); err != nil {
			return err
		}
	}
	return nil
}
