package skein

import (
	"context"
	"encoding/json"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// rawSeq builds a message sequence from literals.
func rawSeq(messages ...string) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		for _, m := range messages {
			if !yield(json.RawMessage(m), nil) {
				return
			}
		}
	}
}

func TestDecoded_TypedValues(t *testing.T) {
	type tick struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}

	var ticks []tick

	for v, err := range Decoded[tick](rawSeq(
		`{"symbol":"ABC","price":1.5}`,
		`{"symbol":"XYZ","price":2.25}`,
	)) {
		require.NoError(t, err)
		ticks = append(ticks, v)
	}

	require.Equal(t, []tick{{"ABC", 1.5}, {"XYZ", 2.25}}, ticks)
}

func TestDecoded_MalformedMessageDoesNotEndSequence(t *testing.T) {
	type tick struct {
		Price float64 `json:"price"`
	}

	var (
		decodeErrs int
		values     []float64
	)

	for v, err := range Decoded[tick](rawSeq(
		`{"price":1}`,
		`{not json`,
		`{"price":3}`,
	)) {
		if err != nil {
			decodeErrs++

			continue
		}

		values = append(values, v.Price)
	}

	require.Equal(t, 1, decodeErrs)
	require.Equal(t, []float64{1, 3}, values)
}

func TestDecoded_StopsWhenConsumerBreaks(t *testing.T) {
	var seen int

	for range Decoded[int](rawSeq(`1`, `2`, `3`)) {
		seen++

		break
	}

	require.Equal(t, 1, seen)
}

func TestFirst_ReturnsOneMessage(t *testing.T) {
	transport := newFakeTransport()

	// Answer the subscribe frame with one message on the channel.
	transport.respond = func(frame *Frame) []*Frame {
		if frame.Type != TypeSubscribe {
			return nil
		}

		return []*Frame{{
			Type:    TypeChannelMessage,
			Channel: frame.Channel,
			Data:    json.RawMessage(`{"ready":true}`),
		}}
	}

	client := newTestClient(t, transport)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := First(ctx, client, "status")
	require.NoError(t, err)
	require.JSONEq(t, `{"ready":true}`, string(raw))
}

func TestFirst_ContextCancelled(t *testing.T) {
	client := newTestClient(t, newFakeTransport())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := First(ctx, client, "status")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
