package protocol

import (
	"encoding/json"
	"fmt"
)

// Frame type tags on the wire.
const (
	TypeSubscribe      = "subscribe"
	TypeUnsubscribe    = "unsubscribe"
	TypePublish        = "publish"
	TypeBroadcast      = "broadcast"
	TypeResponse       = "response"
	TypeChannelMessage = "channel_message"
)

// Frame is the wire unit exchanged over the stream. Which fields are set
// depends on Type: subscribe/unsubscribe carry Channel, publish/broadcast
// carry Channel and Data, response carries RequestID, Success, Data and
// Error, channel_message carries Channel and Data.
type Frame struct {
	Type      string          `json:"type,omitempty"`
	Channel   string          `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Success   bool            `json:"success,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Decode parses one inbound frame. A bare object carrying channel and data
// without a type tag is accepted as a channel message.
func Decode(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	if f.Type == "" && f.Channel != "" {
		f.Type = TypeChannelMessage
	}

	return &f, nil
}

// Encode serializes the frame for transmission.
func (f *Frame) Encode() ([]byte, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Type, err)
	}

	return raw, nil
}

// Subscribe builds the frame announcing interest in a channel.
func Subscribe(channel string) *Frame {
	return &Frame{Type: TypeSubscribe, Channel: channel}
}

// Unsubscribe builds the frame withdrawing interest in a channel.
func Unsubscribe(channel string) *Frame {
	return &Frame{Type: TypeUnsubscribe, Channel: channel}
}

// Publish builds a publish frame carrying data on a channel.
func Publish(channel string, data any) (*Frame, error) {
	raw, err := marshalData(data)
	if err != nil {
		return nil, fmt.Errorf("publish to %s: %w", channel, err)
	}

	return &Frame{Type: TypePublish, Channel: channel, Data: raw}, nil
}

// Broadcast builds a broadcast frame carrying data on a channel.
func Broadcast(channel string, data any) (*Frame, error) {
	raw, err := marshalData(data)
	if err != nil {
		return nil, fmt.Errorf("broadcast to %s: %w", channel, err)
	}

	return &Frame{Type: TypeBroadcast, Channel: channel, Data: raw}, nil
}

func marshalData(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal data: %w", err)
		}

		return raw, nil
	}
}
