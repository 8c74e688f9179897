// Package kv holds the replicated key/value store the sync layer writes to,
// along with in-process, file-backed, and relay-backed implementations.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Store is a namespaced key/value space replicated to every participant.
// Every successful Set produces a Notification on every watcher, the
// writer's own watchers included.
type Store interface {
	Get(ctx context.Context, namespace, key string) (any, bool, error)
	Set(ctx context.Context, namespace, key string, value any) error
	Watch(ctx context.Context) (<-chan Notification, error)
	Close() error
}

// Notification reports a changed key. Value arrives in one of the shapes
// the store was configured with: decoded JSON, a JSON string, or a
// {"value": "<json>"} container.
type Notification struct {
	Namespace string            `json:"namespace"`
	Key       string            `json:"key"`
	Value     any               `json:"value"`
	Origin    string            `json:"origin,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Shape selects how notification values are delivered.
type Shape int

const (
	ShapeRaw Shape = iota
	ShapeString
	ShapeWrapped
)

func ParseShape(s string) (Shape, error) {
	switch s {
	case "", "raw":
		return ShapeRaw, nil
	case "string":
		return ShapeString, nil
	case "wrapped":
		return ShapeWrapped, nil
	}
	return ShapeRaw, fmt.Errorf("unknown notification shape %q", s)
}

// Entry is one stored value and who wrote it last.
type Entry struct {
	Value     json.RawMessage `json:"value" yaml:"-"`
	Origin    string          `json:"origin,omitempty" yaml:"origin,omitempty"`
	UpdatedAt time.Time       `json:"updated_at" yaml:"updated_at"`
}

// shaped renders stored JSON in the given delivery shape.
func shaped(shape Shape, raw json.RawMessage) any {
	switch shape {
	case ShapeString:
		return string(raw)
	case ShapeWrapped:
		return map[string]any{"value": string(raw)}
	default:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return string(raw)
		}
		return v
	}
}

// encodeValue turns a Set argument into stored JSON. Raw JSON is kept as is.
func encodeValue(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, fmt.Errorf("value is not valid JSON")
		}
		return append(json.RawMessage(nil), v...), nil
	case []byte:
		if !json.Valid(v) {
			return nil, fmt.Errorf("value is not valid JSON")
		}
		return append(json.RawMessage(nil), v...), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode value: %w", err)
		}
		return b, nil
	}
}

func validName(namespace, key string) error {
	if namespace == "" || key == "" {
		return fmt.Errorf("namespace and key are required")
	}
	return nil
}
