package relay

import (
	"errors"

	"github.com/fogfish/opts"

	"github.com/casualjim/relay/broker"
	"github.com/casualjim/relay/channel"
	"github.com/casualjim/relay/state"
)

// WithRegistry binds the connection to a shared registry. Connections that
// should multiplex over the same entry space must share one registry
// instance.
func WithRegistry[T any](r *broker.Registry[T]) opts.Option[Connection[T]] {
	return opts.Type[Connection[T]](func(c *Connection[T]) error {
		if r == nil {
			return errors.New("relay: registry cannot be nil")
		}
		c.registry = r
		return nil
	})
}

// WithMode selects the replay discipline for the connection's channel.
// The default is channel.Latest.
func WithMode[T any](m channel.Mode) opts.Option[Connection[T]] {
	return opts.Type[Connection[T]](func(c *Connection[T]) error {
		c.mode = m
		return nil
	})
}

// WithFactory binds the producer factory at construction time. The factory
// may also be supplied later through AttachWith.
func WithFactory[T any](f broker.Factory[T]) opts.Option[Connection[T]] {
	return opts.Type[Connection[T]](func(c *Connection[T]) error {
		if f == nil {
			return errors.New("relay: factory cannot be nil")
		}
		c.factory = f
		return nil
	})
}

// WithBuffer sets the per-subscriber delivery buffer size.
func WithBuffer[T any](n int) opts.Option[Connection[T]] {
	return opts.Type[Connection[T]](func(c *Connection[T]) error {
		c.buffer = n
		return nil
	})
}

// WithMaxPending bounds the per-subscriber backlog before a slow subscriber
// is dropped. Zero means unbounded.
func WithMaxPending[T any](n int) opts.Option[Connection[T]] {
	return opts.Type[Connection[T]](func(c *Connection[T]) error {
		c.maxPending = n
		return nil
	})
}

// WithInstanceState seeds the connection from a container produced by
// InstanceState in a previous host incarnation.
func WithInstanceState[T any](saved state.State) opts.Option[Connection[T]] {
	return opts.Type[Connection[T]](func(c *Connection[T]) error {
		return c.restoreState(saved)
	})
}

// WithSetName namespaces the registry keys of a set's connections. The name
// must be stable across host restarts for persisted state to line up with
// surviving registry entries.
func WithSetName[T any](name string) opts.Option[ConnectionSet[T]] {
	return opts.Type[ConnectionSet[T]](func(s *ConnectionSet[T]) error {
		if name == "" {
			return errors.New("relay: set name cannot be empty")
		}
		s.name = name
		return nil
	})
}

// WithSetRegistry binds the set and all its connections to a shared
// registry.
func WithSetRegistry[T any](r *broker.Registry[T]) opts.Option[ConnectionSet[T]] {
	return opts.Type[ConnectionSet[T]](func(s *ConnectionSet[T]) error {
		if r == nil {
			return errors.New("relay: registry cannot be nil")
		}
		s.registry = r
		return nil
	})
}

// WithSetMode sets the default replay mode for connections created by the
// set.
func WithSetMode[T any](m channel.Mode) opts.Option[ConnectionSet[T]] {
	return opts.Type[ConnectionSet[T]](func(s *ConnectionSet[T]) error {
		s.mode = m
		return nil
	})
}

// WithSetFactory sets the default producer factory for connections created
// by the set.
func WithSetFactory[T any](f broker.Factory[T]) opts.Option[ConnectionSet[T]] {
	return opts.Type[ConnectionSet[T]](func(s *ConnectionSet[T]) error {
		if f == nil {
			return errors.New("relay: factory cannot be nil")
		}
		s.factory = f
		return nil
	})
}

// WithSetBuffer sets the default per-subscriber buffer size for connections
// created by the set.
func WithSetBuffer[T any](n int) opts.Option[ConnectionSet[T]] {
	return opts.Type[ConnectionSet[T]](func(s *ConnectionSet[T]) error {
		s.buffer = n
		return nil
	})
}

// WithSetMaxPending sets the default per-subscriber backlog bound for
// connections created by the set. Zero means unbounded.
func WithSetMaxPending[T any](n int) opts.Option[ConnectionSet[T]] {
	return opts.Type[ConnectionSet[T]](func(s *ConnectionSet[T]) error {
		s.maxPending = n
		return nil
	})
}
