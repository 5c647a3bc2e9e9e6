// Package mirror forwards a subscription's notifications to NATS so
// observers in other processes can follow a connection. It is an optional
// adapter: the broker itself has no network surface, and a mirrored stream
// carries no replay guarantees beyond what NATS delivers.
package mirror

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/casualjim/relay/channel"
	"github.com/casualjim/relay/notify"
	"github.com/casualjim/relay/pkg/slogx"
)

// Envelope is the wire form of one mirrored notification.
type Envelope struct {
	Key          string          `json:"key"`
	Notification json.RawMessage `json:"notification"`
	Timestamp    strfmt.DateTime `json:"timestamp"`
}

// Publish forwards every notification arriving on sub to the given subject
// until the subscription ends or ctx is canceled. Notifications that fail to
// encode are logged and skipped; transport errors end the mirror.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject, key string, sub *channel.Subscription[T]) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-sub.Events():
			if !ok {
				return nil
			}
			nb, err := notify.ToJSON[T](n)
			if err != nil {
				slog.Error("failed to encode notification",
					slogx.Error(err), slog.String("key", key))
				continue
			}
			eb, err := json.Marshal(Envelope{
				Key:          key,
				Notification: nb,
				Timestamp:    strfmt.DateTime(time.Now().UTC()),
			})
			if err != nil {
				return err
			}
			if err := nc.Publish(subject, eb); err != nil {
				return err
			}
		}
	}
}

// Remote is one notification received from a mirrored stream.
type Remote[T any] struct {
	Key          string
	Notification notify.Notification[T]
	Timestamp    strfmt.DateTime
}

// Subscribe decodes mirrored notifications from subject. The returned stop
// function releases the NATS subscription; the channel is not closed by
// stop, consumers should stop reading after calling it. Malformed envelopes
// are logged and dropped, as are notifications a slow consumer cannot keep
// up with.
func Subscribe[T any](nc *nats.Conn, subject string) (<-chan Remote[T], func(), error) {
	out := make(chan Remote[T], 50)
	nsub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			slog.Error("failed to decode mirror envelope",
				slogx.Error(err), slogx.ByteString("payload", msg.Data))
			return
		}
		n, err := notify.FromJSON[T](env.Notification)
		if err != nil {
			slog.Error("failed to decode mirrored notification",
				slogx.Error(err), slogx.ByteString("payload", env.Notification))
			return
		}
		select {
		case out <- Remote[T]{Key: env.Key, Notification: n, Timestamp: env.Timestamp}:
		default:
			slog.Debug("dropping mirrored notification for slow consumer",
				slog.String("subject", subject))
		}
	})
	if err != nil {
		return nil, nil, err
	}

	stop := func() {
		if err := nsub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				slogx.Error(err), slog.String("subject", subject))
		}
	}
	return out, stop, nil
}
