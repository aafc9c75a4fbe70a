// Package protocol implements the Pusher-compatible wire envelope:
// encode/decode, size and length limits, and the reserved event
// vocabulary.
package protocol

import (
	"encoding/json"
	"errors"
)

// Size and length limits. These are not part of the Pusher protocol
// proper; they bound how much garbage a single frame can make the
// server parse before it gives up, the same role read-buffer caps
// play on the transport side.
const (
	MaxFrameBytes    = 64 * 1024
	MaxEventLength   = 200
	MaxChannelLength = 200
)

var (
	ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")
	ErrMalformed     = errors.New("protocol: malformed envelope")
)

// Envelope is the single wire shape exchanged in both directions:
// client -> server control frames (subscribe/unsubscribe/ping/client
// events) and server -> client frames (acks, broadcasts, presence
// events, errors) all marshal to this shape.
type Envelope struct {
	Event       string          `json:"event"`
	Data        json.RawMessage `json:"data,omitempty"`
	Channel     string          `json:"channel,omitempty"`
	Auth        string          `json:"auth,omitempty"`
	ChannelData string          `json:"channel_data,omitempty"`
}

// Decode parses raw into an Envelope, rejecting frames that are
// oversized, not valid JSON, missing or oversize in their required
// "event" field, or oversize in their optional "channel" field.
func Decode(raw []byte) (Envelope, error) {
	if len(raw) > MaxFrameBytes {
		return Envelope{}, ErrFrameTooLarge
	}
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, ErrMalformed
	}
	if e.Event == "" || len(e.Event) > MaxEventLength {
		return Envelope{}, ErrMalformed
	}
	if len(e.Channel) > MaxChannelLength {
		return Envelope{}, ErrMalformed
	}
	return e, nil
}

// Encode marshals e back to its wire form.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
