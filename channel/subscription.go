package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/casualjim/relay/notify"
	"github.com/casualjim/relay/pkg/uuidx"
)

// Subscription is one consumer's view of a multicast channel. Notifications
// arrive on Events in publish order; the channel is closed when the
// subscription ends. Unsubscribing releases only this consumer, never the
// producer.
type Subscription[T any] struct {
	id  string
	ctx context.Context
	out chan notify.Notification[T]

	mu         sync.Mutex
	pending    []notify.Notification[T]
	closed     bool
	maxPending int

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func newSubscription[T any](ctx context.Context, s settings) *Subscription[T] {
	return &Subscription[T]{
		id:         uuidx.NewString(),
		ctx:        ctx,
		out:        make(chan notify.Notification[T], s.buffer),
		maxPending: s.maxPending,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// ID returns the subscription's unique identifier.
func (s *Subscription[T]) ID() string { return s.id }

// Events returns the subscription's delivery channel. It is closed when the
// subscription ends.
func (s *Subscription[T]) Events() <-chan notify.Notification[T] { return s.out }

// Unsubscribe detaches the subscription from its channel. It is safe to call
// multiple times and from any goroutine.
func (s *Subscription[T]) Unsubscribe() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if s.onClose != nil {
			s.onClose()
		}
		close(s.done)
	})
}

func (s *Subscription[T]) start() {
	go s.forward()
}

// enqueue appends n to the backlog. Called with the channel lock held, so
// ordering across subscriptions follows publish order.
func (s *Subscription[T]) enqueue(n notify.Notification[T]) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.maxPending > 0 && len(s.pending) >= s.maxPending {
		s.mu.Unlock()
		slog.Debug("dropping slow subscriber", slog.String("subscription", s.id))
		s.Unsubscribe()
		return
	}
	s.pending = append(s.pending, n)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) forward() {
	defer close(s.out)
	defer s.Unsubscribe()

	for {
		for {
			s.mu.Lock()
			if len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			batch := s.pending
			s.pending = nil
			s.mu.Unlock()

			for _, n := range batch {
				select {
				case s.out <- n:
				case <-s.done:
					return
				case <-s.ctx.Done():
					return
				}
			}
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		}
	}
}
