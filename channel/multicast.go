// Package channel implements the fan-out primitive between one producer and
// any number of subscribers. A multicast channel buffers notifications
// according to its replay mode and delivers them to every subscription in
// publish order. Subscribing is linearized against publishing, so a
// subscriber arriving concurrently with an emission sees it exactly once:
// either from the replay buffer or live, never both, never neither.
package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alphadose/haxmap"

	"github.com/casualjim/relay/notify"
)

// Mode selects the replay discipline of a multicast channel.
type Mode int

const (
	// Latest retains only the most recent notification and replays it to
	// new subscribers. Memory stays constant in the event count.
	Latest Mode = iota
	// History retains every notification in order and replays the full
	// sequence to new subscribers. Memory grows with the event count,
	// bounded in practice by the producer terminating.
	History
)

func (m Mode) String() string {
	switch m {
	case Latest:
		return "latest"
	case History:
		return "history"
	default:
		return "unknown"
	}
}

const defaultBuffer = 50

type settings struct {
	buffer     int
	maxPending int
}

// Option configures a multicast channel.
type Option func(*settings)

// WithBuffer sets the per-subscription delivery buffer size.
func WithBuffer(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// WithMaxPending bounds the per-subscription backlog. A subscriber whose
// backlog exceeds the bound is dropped (unsubscribed). Zero means unbounded.
func WithMaxPending(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxPending = n
		}
	}
}

// Multicast fans one producer's notifications out to many subscriptions.
type Multicast[T any] struct {
	mode     Mode
	settings settings

	mu         sync.Mutex
	replay     []notify.Notification[T]
	terminated bool
	subs       *haxmap.Map[string, *Subscription[T]]
}

// New creates a multicast channel with the given replay mode.
func New[T any](mode Mode, opt ...Option) *Multicast[T] {
	s := settings{buffer: defaultBuffer}
	for _, o := range opt {
		o(&s)
	}
	return &Multicast[T]{
		mode:     mode,
		settings: s,
		subs:     haxmap.New[string, *Subscription[T]](),
	}
}

// Mode returns the channel's replay mode.
func (m *Multicast[T]) Mode() Mode { return m.mode }

// Publish records n into the replay buffer and delivers it to all current
// subscriptions in order. Notifications published after a terminal one, or
// with a canceled context, are dropped.
func (m *Multicast[T]) Publish(ctx context.Context, n notify.Notification[T]) {
	if ctx != nil && ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	if m.terminated {
		m.mu.Unlock()
		slog.Debug("dropping notification past terminal event",
			slog.String("mode", m.mode.String()))
		return
	}
	if notify.IsTerminal[T](n) {
		m.terminated = true
	}

	switch m.mode {
	case Latest:
		m.replay = append(m.replay[:0], n)
	case History:
		m.replay = append(m.replay, n)
	}

	m.subs.ForEach(func(_ string, sub *Subscription[T]) bool {
		sub.enqueue(n)
		return true
	})
	m.mu.Unlock()
}

// Subscribe registers a new subscription, pre-loading it with the replay
// buffer. The subscription ends when Unsubscribe is called or ctx is
// canceled.
func (m *Multicast[T]) Subscribe(ctx context.Context) *Subscription[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	sub := newSubscription[T](ctx, m.settings)
	sub.onClose = func() { m.subs.Del(sub.id) }

	// Register before preloading: a subscriber dropped mid-preload (backlog
	// bound exceeded) unsubscribes itself, and that must deregister it here.
	m.mu.Lock()
	m.subs.Set(sub.id, sub)
	for _, n := range m.replay {
		sub.enqueue(n)
	}
	m.mu.Unlock()

	sub.start()
	return sub
}

// SubscriberCount returns the number of live subscriptions.
func (m *Multicast[T]) SubscriberCount() int {
	return int(m.subs.Len())
}

// Terminated reports whether a terminal notification has been recorded.
func (m *Multicast[T]) Terminated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminated
}

// Replay returns a copy of the current replay buffer.
func (m *Multicast[T]) Replay() []notify.Notification[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notify.Notification[T], len(m.replay))
	copy(out, m.replay)
	return out
}
