package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrDecode       = errors.New("decode event")
	ErrUnknownTopic = errors.New("unknown topic")
)

// Encode serialises an event as JSON, keeping the declared field names.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

// Decode parses payload into T. Unknown fields are ignored so producers can
// add fields without breaking older consumers; only malformed JSON or values
// of the wrong type fail.
func Decode[T any](payload []byte) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return v, nil
}

// DecodeForTopic decodes payload into the event shape carried by topic.
func DecodeForTopic(topic string, payload []byte) (any, error) {
	switch topic {
	case TopicUsers:
		evt, err := Decode[UserEvent](payload)
		if err != nil {
			return nil, err
		}
		return evt, nil
	case TopicTransactions:
		evt, err := Decode[TransactionEvent](payload)
		if err != nil {
			return nil, err
		}
		return evt, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
}
