package notify

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	nextJSON   = []byte(`{"type":"next"}`)
	failedJSON = []byte(`{"type":"failed"}`)
	doneJSON   = []byte(`{"type":"done"}`)
)

// ToJSON encodes a notification with a type tag, so streams of mixed
// notifications can be decoded without out-of-band information. Failed
// notifications serialize the error message only; error identity does not
// survive the wire.
func ToJSON[T any](n Notification[T]) ([]byte, error) {
	switch e := n.(type) {
	case Next[T]:
		vb, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal notification value: %w", err)
		}
		return sjson.SetRawBytes(nextJSON, "value", vb)
	case Failed[T]:
		msg := "producer failed"
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return sjson.SetBytes(failedJSON, "error", msg)
	case Done[T]:
		out := make([]byte, len(doneJSON))
		copy(out, doneJSON)
		return out, nil
	default:
		return nil, fmt.Errorf("unknown notification type: %T", n)
	}
}

// FromJSON decodes a notification produced by ToJSON.
func FromJSON[T any](data []byte) (Notification[T], error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	tag := gjson.GetBytes(data, "type")
	if !tag.Exists() {
		return nil, errors.New("missing required field 'type'")
	}

	switch tag.String() {
	case "next":
		value := gjson.GetBytes(data, "value")
		if !value.Exists() {
			return nil, errors.New("missing required field 'value'")
		}
		var v T
		if err := json.Unmarshal([]byte(value.Raw), &v); err != nil {
			return nil, fmt.Errorf("invalid value: %w", err)
		}
		return Next[T]{Value: v}, nil
	case "failed":
		msg := gjson.GetBytes(data, "error")
		if !msg.Exists() {
			return nil, errors.New("missing required field 'error'")
		}
		return Failed[T]{Err: errors.New(msg.String())}, nil
	case "done":
		return Done[T]{}, nil
	default:
		return nil, fmt.Errorf("unknown notification type %q", tag.String())
	}
}
