package protocol

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/skeinhq/skein-go/internal/errors"
)

// ActionEnvelope is the application payload of a correlated publish frame.
// The remote service answers it with a response frame echoing RequestID.
type ActionEnvelope struct {
	Action       string `json:"action"`
	Payload      any    `json:"payload,omitempty"`
	ReplyChannel string `json:"reply_channel"`
	RequestID    string `json:"request_id"`
	Timestamp    int64  `json:"timestamp"`
}

// EnvelopeBuilder stamps action envelopes with the client's reply channel
// and validates payloads against their registered schemas before they go
// anywhere near the wire.
type EnvelopeBuilder struct {
	replyChannel string
	schemas      map[string]*compiledSchema
}

// compiledSchema resolves lazily, once, on first use of its action.
type compiledSchema struct {
	schema   *jsonschema.Schema
	once     sync.Once
	resolved *jsonschema.Resolved
	err      error
}

// NewEnvelopeBuilder creates a builder for the given reply channel. schemas
// maps action names to payload schemas and may be nil.
func NewEnvelopeBuilder(replyChannel string, schemas map[string]*jsonschema.Schema) *EnvelopeBuilder {
	compiled := make(map[string]*compiledSchema, len(schemas))
	for action, schema := range schemas {
		compiled[action] = &compiledSchema{schema: schema}
	}

	return &EnvelopeBuilder{
		replyChannel: replyChannel,
		schemas:      compiled,
	}
}

// Build assembles the envelope for one action call, validating the payload
// when a schema is registered for the action.
func (b *EnvelopeBuilder) Build(action string, payload any, requestID string) (*ActionEnvelope, error) {
	if action == "" {
		return nil, fmt.Errorf("action name must not be empty")
	}

	if err := b.checkPayload(action, payload); err != nil {
		return nil, err
	}

	return &ActionEnvelope{
		Action:       action,
		Payload:      payload,
		ReplyChannel: b.replyChannel,
		RequestID:    requestID,
		Timestamp:    time.Now().UnixMilli(),
	}, nil
}

func (b *EnvelopeBuilder) checkPayload(action string, payload any) error {
	cs, ok := b.schemas[action]
	if !ok {
		return nil
	}

	cs.once.Do(func() {
		cs.resolved, cs.err = cs.schema.Resolve(nil)
	})

	if cs.err != nil {
		return &errors.SchemaError{Action: action, Err: cs.err}
	}

	// Validate the JSON shape, not the Go value: round-trip the payload the
	// same way it will be serialized into the frame.
	instance, err := toJSONValue(payload)
	if err != nil {
		return &errors.SchemaError{Action: action, Err: err}
	}

	if err := cs.resolved.Validate(instance); err != nil {
		return &errors.SchemaError{Action: action, Err: err}
	}

	return nil
}

func toJSONValue(payload any) (any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, fmt.Errorf("round-trip payload: %w", err)
	}

	return instance, nil
}
