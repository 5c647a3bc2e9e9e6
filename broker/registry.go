// Package broker implements the keyed connection registry. It guarantees at
// most one live producer per key: get-or-create, remove, and teardown on the
// same key are linearized, and a producer is only ever started as part of
// creating its registry entry. Producer output is materialized into
// notifications and published to the entry's multicast channel, so failures
// and completion are delivered like any other event instead of escaping as
// panics or lost signals.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alphadose/haxmap"

	"github.com/casualjim/relay/channel"
	"github.com/casualjim/relay/notify"
	"github.com/casualjim/relay/pkg/slogx"
	"github.com/casualjim/relay/state"
)

// Producer is a cold asynchronous computation. It runs only once the
// registry starts it, emits values through emit, and terminates exactly once:
// returning nil completes the stream, returning an error fails it. Producers
// should honor ctx, which the registry cancels on teardown.
type Producer[T any] func(ctx context.Context, emit func(T)) error

// Factory creates a producer from an opaque argument container.
type Factory[T any] func(arg state.State) Producer[T]

type entry[T any] struct {
	channel *channel.Multicast[T]
	cancel  context.CancelFunc
	done    chan struct{}
}

// Registry maps connection keys to live producer entries. Construct one per
// composition root and share it by reference; there is no process-wide
// instance.
type Registry[T any] struct {
	mu      sync.Mutex
	entries *haxmap.Map[string, *entry[T]]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		entries: haxmap.New[string, *entry[T]](),
	}
}

// GetOrCreate returns the channel registered under key. When no entry
// exists, it atomically creates the channel via newChannel, starts the
// producer obtained from producer, and registers both; otherwise neither
// factory is invoked. Passing a nil factory is a programmer error.
func (r *Registry[T]) GetOrCreate(
	key string,
	newChannel func() *channel.Multicast[T],
	producer func() Producer[T],
) *channel.Multicast[T] {
	if newChannel == nil {
		panic("broker: channel factory is required")
	}
	if producer == nil {
		panic("broker: producer factory is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries.Get(key); ok {
		return e.channel
	}

	ch := newChannel()
	ctx, cancel := context.WithCancel(context.Background())
	e := &entry[T]{channel: ch, cancel: cancel, done: make(chan struct{})}
	r.entries.Set(key, e)

	slog.Debug("starting producer", slog.String("key", key),
		slogx.Stringer("mode", ch.Mode()))
	go r.pump(ctx, key, e, producer())

	return ch
}

// Get returns the channel registered under key, if any.
func (r *Registry[T]) Get(key string) (*channel.Multicast[T], bool) {
	e, ok := r.entries.Get(key)
	if !ok {
		return nil, false
	}
	return e.channel, true
}

// Has reports whether an entry exists for key.
func (r *Registry[T]) Has(key string) bool {
	_, ok := r.entries.Get(key)
	return ok
}

// Keys returns the keys of all live entries, for diagnostics.
func (r *Registry[T]) Keys() []string {
	keys := make([]string, 0, r.entries.Len())
	r.entries.ForEach(func(k string, _ *entry[T]) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Remove drops the entry for key without stopping its producer. Used when
// teardown ownership is transferred elsewhere.
func (r *Registry[T]) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries.Del(key)
}

// Teardown cancels the producer registered under key and drops the entry.
// After Teardown returns, no further notifications reach the entry's
// channel, even through stale references. Calling Teardown on an absent key
// is a no-op.
func (r *Registry[T]) Teardown(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardownLocked(key)
}

// TeardownAll tears down every live entry.
func (r *Registry[T]) TeardownAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range r.Keys() {
		r.teardownLocked(key)
	}
}

func (r *Registry[T]) teardownLocked(key string) {
	e, ok := r.entries.Get(key)
	if !ok {
		return
	}
	slog.Debug("tearing down producer", slog.String("key", key))
	e.cancel()
	r.entries.Del(key)
}

// pump runs the producer and publishes its materialized notifications. The
// terminal notification is suppressed when the entry was torn down, so a
// stale channel reference observes nothing after Teardown.
func (r *Registry[T]) pump(ctx context.Context, key string, e *entry[T], produce Producer[T]) {
	defer close(e.done)

	err := runProducer(ctx, e.channel, produce)
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		slog.Debug("producer failed", slog.String("key", key), slogx.Error(err))
		e.channel.Publish(ctx, notify.Failed[T]{Err: err})
		return
	}
	e.channel.Publish(ctx, notify.Done[T]{})
}

func runProducer[T any](ctx context.Context, ch *channel.Multicast[T], produce Producer[T]) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("producer panic: %v", p)
		}
	}()

	emit := func(v T) {
		if ctx.Err() != nil {
			return
		}
		ch.Publish(ctx, notify.Next[T]{Value: v})
	}
	return produce(ctx, emit)
}
