// Package envelope defines the canonical sync event and the adapters that turn
// any of the store's wire shapes into it.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/grovetools/crownest/errors"
)

// Action is the kind of change an envelope carries.
type Action string

const (
	ActionUpdate  Action = "update"
	ActionCreate  Action = "create"
	ActionDelete  Action = "delete"
	ActionCommand Action = "command"
	ActionShow    Action = "show"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionUpdate, ActionCreate, ActionDelete, ActionCommand, ActionShow:
		return true
	}
	return false
}

// maxUnwrap bounds how many string/value layers Decode peels off.
const maxUnwrap = 4

// Envelope is one change travelling between participants. For ActionUpdate,
// Data is always the complete snapshot of the domain.
type Envelope struct {
	Domain    Domain          `json:"type"`
	Action    Action          `json:"action"`
	Data      json.RawMessage `json:"data"`
	Origin    string          `json:"user"`
	Timestamp int64           `json:"timestamp"`
	SyncID    string          `json:"syncId,omitempty"`
	Command   bool            `json:"isCommand,omitempty"`
}

// Wrapped is the {"value": "<json>"} container some stores deliver.
type Wrapped struct {
	Value string `json:"value"`
}

// New builds an envelope stamped with origin and the given clock reading.
func New(domain Domain, action Action, data any, origin string, now time.Time) (Envelope, error) {
	if domain == "" || domain == DomainAll {
		return Envelope{}, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("cannot build envelope for domain '%s'", domain))
	}
	if !action.Valid() {
		return Envelope{}, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown action '%s'", action))
	}
	raw, err := marshalData(data)
	if err != nil {
		return Envelope{}, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to encode envelope data")
	}
	return Envelope{
		Domain:    domain,
		Action:    action,
		Data:      raw,
		Origin:    origin,
		Timestamp: now.UnixMilli(),
	}, nil
}

func marshalData(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, fmt.Errorf("data is not valid JSON")
		}
		return append(json.RawMessage(nil), v...), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// Validate checks the fields every decoded envelope must carry.
func (e Envelope) Validate() error {
	if e.Domain == "" {
		return errors.DecodeFailed("envelope has no type", nil)
	}
	if !e.Action.Valid() {
		return errors.DecodeFailed(fmt.Sprintf("envelope has unknown action '%s'", e.Action), nil)
	}
	return nil
}

// Into unmarshals the envelope data into v.
func (e Envelope) Into(v any) error {
	if len(e.Data) == 0 {
		return errors.DecodeFailed("envelope has no data", nil)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.DecodeFailed(fmt.Sprintf("%s data", e.Domain), err)
	}
	return nil
}

// Time returns the producer timestamp.
func (e Envelope) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Decode turns any supported wire shape into an Envelope: an Envelope value,
// a decoded object, a JSON string or bytes, or a {"value": "<json>"} container.
// It never panics; malformed input yields a DECODE_FAILED error.
func Decode(raw any) (env Envelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			env, err = Envelope{}, errors.DecodeFailed(fmt.Sprintf("%v", r), nil)
		}
	}()
	return decode(raw, 0)
}

func decode(raw any, depth int) (Envelope, error) {
	if depth > maxUnwrap {
		return Envelope{}, errors.DecodeFailed("too many nested value wrappers", nil)
	}
	switch v := raw.(type) {
	case nil:
		return Envelope{}, errors.DecodeFailed("empty value", nil)
	case Envelope:
		return v, v.Validate()
	case *Envelope:
		if v == nil {
			return Envelope{}, errors.DecodeFailed("empty value", nil)
		}
		return *v, v.Validate()
	case Wrapped:
		return decode(v.Value, depth+1)
	case *Wrapped:
		if v == nil {
			return Envelope{}, errors.DecodeFailed("empty value", nil)
		}
		return decode(v.Value, depth+1)
	case string:
		return decodeJSON([]byte(v), depth)
	case []byte:
		return decodeJSON(v, depth)
	case json.RawMessage:
		return decodeJSON(v, depth)
	case map[string]any:
		if inner, ok := v["value"]; ok {
			if _, typed := v["type"]; !typed {
				return decode(inner, depth+1)
			}
		}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return Envelope{}, errors.DecodeFailed(fmt.Sprintf("unsupported value %T", raw), err)
	}
	return decodeJSON(b, depth)
}

func decodeJSON(b []byte, depth int) (Envelope, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return Envelope{}, errors.DecodeFailed("empty value", nil)
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return Envelope{}, errors.DecodeFailed("malformed JSON string", err)
		}
		return decode(s, depth+1)
	case '{':
	default:
		return Envelope{}, errors.DecodeFailed(fmt.Sprintf("expected JSON object, got %q", preview(b)), nil)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return Envelope{}, errors.DecodeFailed("malformed JSON object", err)
	}
	if inner, ok := fields["value"]; ok {
		if _, typed := fields["type"]; !typed {
			return decode(json.RawMessage(inner), depth+1)
		}
	}

	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, errors.DecodeFailed("malformed envelope", err)
	}
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("null")
	}
	return env, env.Validate()
}

// DecodeValue normalises a stored snapshot value to JSON. It accepts the
// same shapes as Decode; a {"value": ...} container is unwrapped whether
// the inner value is a JSON string or an already decoded value.
func DecodeValue(raw any) (out json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, errors.DecodeFailed(fmt.Sprintf("%v", r), nil)
		}
	}()
	return decodeValue(raw, 0)
}

func decodeValue(raw any, depth int) (json.RawMessage, error) {
	if depth > maxUnwrap {
		return nil, errors.DecodeFailed("too many nested value wrappers", nil)
	}
	switch v := raw.(type) {
	case nil:
		return nil, errors.DecodeFailed("empty value", nil)
	case Wrapped:
		return decodeValue(v.Value, depth+1)
	case *Wrapped:
		if v == nil {
			return nil, errors.DecodeFailed("empty value", nil)
		}
		return decodeValue(v.Value, depth+1)
	case string:
		return valueJSON([]byte(v), depth)
	case []byte:
		return valueJSON(v, depth)
	case json.RawMessage:
		return valueJSON(v, depth)
	case map[string]any:
		if inner, ok := v["value"]; ok && len(v) == 1 {
			return decodeValue(inner, depth+1)
		}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.DecodeFailed(fmt.Sprintf("unsupported value %T", raw), err)
	}
	return valueJSON(b, depth)
}

func valueJSON(b []byte, depth int) (json.RawMessage, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, errors.DecodeFailed("empty value", nil)
	}
	if !json.Valid(b) {
		return nil, errors.DecodeFailed(fmt.Sprintf("not JSON: %q", preview(b)), nil)
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, errors.DecodeFailed("malformed JSON string", err)
		}
		// A string holding JSON is a serialized snapshot; anything else is a
		// plain string snapshot.
		if trimmed := strings.TrimSpace(s); trimmed != "" && json.Valid([]byte(trimmed)) {
			return decodeValue(trimmed, depth+1)
		}
		return append(json.RawMessage(nil), b...), nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, errors.DecodeFailed("malformed JSON object", err)
		}
		if inner, ok := fields["value"]; ok && len(fields) == 1 {
			return decodeValue(json.RawMessage(inner), depth+1)
		}
	}
	return append(json.RawMessage(nil), b...), nil
}

func preview(b []byte) string {
	const max = 32
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
