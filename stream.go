package skein

import (
	"context"
	"encoding/json"
	"iter"
)

// Decoded adapts a raw message iterator into a typed one, decoding each
// message into T. Decode failures are yielded as errors without ending the
// sequence, so a malformed message does not hide the ones behind it.
//
// Example usage:
//
//	type Tick struct {
//	    Symbol string  `json:"symbol"`
//	    Price  float64 `json:"price"`
//	}
//
//	for tick, err := range skein.Decoded[Tick](client.Listen(ctx, "ticker")) {
//	    if err != nil {
//	        continue
//	    }
//	    fmt.Printf("%s @ %.2f\n", tick.Symbol, tick.Price)
//	}
func Decoded[T any](messages iter.Seq2[json.RawMessage, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for raw, err := range messages {
			var value T

			if err == nil {
				err = json.Unmarshal(raw, &value)
			}

			if !yield(value, err) {
				return
			}
		}
	}
}

// First waits for a single message on a channel and returns it, detaching
// the temporary subscription afterwards. It is a convenience for
// one-shot waits; use Listen for streams.
func First(ctx context.Context, c Client, channel string) (json.RawMessage, error) {
	for raw, err := range c.Listen(ctx, channel) {
		return raw, err
	}

	return nil, ctx.Err()
}
