// Package notify defines the materialized event type flowing through
// multicast channels. A producer's output, its failure, and its completion
// are all represented as plain values so terminal signals can be buffered and
// replayed to late subscribers exactly like ordinary emissions.
package notify

import "fmt"

// Notification is the closed union of events a producer can emit:
// Next carries a value, Failed carries the terminal error, Done marks
// successful completion. Failed and Done are terminal: nothing may follow
// them on the same channel.
type Notification[T any] interface {
	notification()
}

// Next carries one produced value.
type Next[T any] struct {
	Value T
}

func (Next[T]) notification() {}

// Failed is the terminal notification for a producer that ended with an
// error.
type Failed[T any] struct {
	Err error
}

func (Failed[T]) notification() {}

func (f Failed[T]) Error() string {
	return fmt.Sprintf("producer failed: %v", f.Err)
}

// Done is the terminal notification for a producer that completed normally.
type Done[T any] struct{}

func (Done[T]) notification() {}

// IsTerminal reports whether n ends the producer's lifetime. T appears in no
// method of the interface, so call sites must supply it explicitly.
func IsTerminal[T any](n Notification[T]) bool {
	switch n.(type) {
	case Failed[T], Done[T]:
		return true
	default:
		return false
	}
}

// Split dispatches n to the matching callback. Nil callbacks are skipped, so
// consumers only interested in values can pass onFailed/onDone as nil.
func Split[T any](n Notification[T], onNext func(T), onFailed func(error), onDone func()) {
	switch e := n.(type) {
	case Next[T]:
		if onNext != nil {
			onNext(e.Value)
		}
	case Failed[T]:
		if onFailed != nil {
			onFailed(e.Err)
		}
	case Done[T]:
		if onDone != nil {
			onDone()
		}
	default:
		panic(fmt.Sprintf("unknown notification type: %T", n))
	}
}
