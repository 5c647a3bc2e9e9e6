/*
Package relay runs long-lived asynchronous producers that outlive the
short-lived consumers observing them, and that survive their host being
destroyed and recreated by persisting their identity and arguments.

The core is a keyed connection broker. For every key there is at most one
live producer; any number of concurrent observers multiplex onto that single
producer through a multicast channel that replays either the most recent
notification (Latest) or the full ordered history (History). Producer
failures and completion are materialized as notifications, so terminal
events are buffered and replayed like any other value instead of silently
closing subscribers.

# Basic usage

A producer is a cold function started at most once per key:

	factory := func(arg state.State) broker.Producer[int] {
		return func(ctx context.Context, emit func(int)) error {
			from, err := state.Get(arg, "from", 0)
			if err != nil {
				return err
			}
			for i := from; ; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Second):
					emit(i)
				}
			}
		}
	}

	conn, err := relay.New("counter",
		relay.WithMode[int](channel.Latest),
		relay.WithFactory(factory),
	)
	if err != nil {
		// handle error
	}

	conn.Launch(state.MustOf("from", 10))
	sub, err := conn.Attach(ctx)
	if err != nil {
		// handle error
	}
	for n := range sub.Events() {
		notify.Split(n, onValue, onError, onDone)
	}

Launch is idempotent while the producer lives: it re-records the argument
without restarting. Restarting is always explicit, via Dismiss followed by
Launch or Attach.

# Surviving host restarts

ConnectionSet groups connections and persists all their arguments into one
state container:

	saved, err := set.Persist()
	// ... host is destroyed, bytes stored via saved.Bytes() ...
	restored, err := state.FromBytes(bytes)
	err = set.Restore(restored)

Restore records arguments without starting anything; the next attach either
finds the surviving registry entry or lazily starts a fresh producer from
the restored argument.

# Architecture

  - notify: the materialized event union {Next, Failed, Done}
  - channel: multicast fan-out with Latest/History replay
  - broker: the keyed registry guaranteeing one producer per key
  - state: immutable, deep-copy-safe serialized containers
  - mirror: optional NATS egress for out-of-process observers
*/
package relay
