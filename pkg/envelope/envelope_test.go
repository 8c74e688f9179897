package envelope

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/crownest/errors"
)

var fixedNow = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func sample(t *testing.T) Envelope {
	t.Helper()
	env, err := New(DomainGroups, ActionUpdate, []map[string]any{{"id": "G1", "name": "Crows"}}, "gm-1", fixedNow)
	require.NoError(t, err)
	return env
}

func TestNew(t *testing.T) {
	env := sample(t)
	assert.Equal(t, DomainGroups, env.Domain)
	assert.Equal(t, ActionUpdate, env.Action)
	assert.Equal(t, "gm-1", env.Origin)
	assert.Equal(t, fixedNow.UnixMilli(), env.Timestamp)
	assert.True(t, fixedNow.Equal(env.Time()))
	assert.JSONEq(t, `[{"id":"G1","name":"Crows"}]`, string(env.Data))

	_, err := New(DomainAll, ActionUpdate, nil, "gm-1", fixedNow)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = New(DomainGroups, "rename", nil, "gm-1", fixedNow)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = New(DomainGroups, ActionUpdate, json.RawMessage(`{broken`), "gm-1", fixedNow)
	assert.Error(t, err)
}

func TestDecodeShapes(t *testing.T) {
	want := sample(t)
	wire, err := json.Marshal(want)
	require.NoError(t, err)

	var asMap map[string]any
	require.NoError(t, json.Unmarshal(wire, &asMap))

	tests := []struct {
		name string
		raw  any
	}{
		{"envelope value", want},
		{"envelope pointer", &want},
		{"decoded object", asMap},
		{"json string", string(wire)},
		{"json bytes", wire},
		{"value wrapper map", map[string]any{"value": string(wire)}},
		{"value wrapper struct", Wrapped{Value: string(wire)}},
		{"value wrapper json", `{"value":` + quote(t, string(wire)) + `}`},
		{"double encoded string", quote(t, string(wire))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, want.Domain, got.Domain)
			assert.Equal(t, want.Action, got.Action)
			assert.Equal(t, want.Origin, got.Origin)
			assert.Equal(t, want.Timestamp, got.Timestamp)
			assert.JSONEq(t, string(want.Data), string(got.Data))
		})
	}
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"nil", nil},
		{"nil pointer", (*Envelope)(nil)},
		{"empty string", ""},
		{"not json", "not json"},
		{"wrapped not json", map[string]any{"value": "not json"}},
		{"wrapped struct not json", Wrapped{Value: "not json"}},
		{"array", `[1,2,3]`},
		{"missing type", `{"action":"update","data":{}}`},
		{"unknown action", `{"type":"groups","action":"explode","data":{}}`},
		{"unsupported type", make(chan int)},
		{"nested too deep", map[string]any{"value": map[string]any{"value": map[string]any{"value": map[string]any{"value": map[string]any{"value": map[string]any{"value": "{}"}}}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := Decode(tt.raw)
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrCodeDecodeFailed), "got %v", err)
			})
		})
	}
}

func TestDecodeMissingDataIsNull(t *testing.T) {
	env, err := Decode(`{"type":"patrol-sheet","action":"show","user":"gm-1"}`)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), env.Data)
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"plain object", map[string]any{"despair": 2, "cheers": 1}, `{"despair":2,"cheers":1}`},
		{"plain slice", []any{"a", "b"}, `["a","b"]`},
		{"json string", `[{"id":"G1"}]`, `[{"id":"G1"}]`},
		{"wrapped string", map[string]any{"value": `[{"id":"G1"}]`}, `[{"id":"G1"}]`},
		{"wrapped decoded", map[string]any{"value": []any{map[string]any{"groupId": "G1"}}}, `[{"groupId":"G1"}]`},
		{"wrapped struct", Wrapped{Value: `{"cheers":3}`}, `{"cheers":3}`},
		{"wrapped json text", `{"value":"{\"cheers\":3}"}`, `{"cheers":3}`},
		{"plain string snapshot", `"hello"`, `"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeValue(tt.raw)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}

	_, err := DecodeValue(map[string]any{"value": "not json"})
	assert.True(t, errors.Is(err, errors.ErrCodeDecodeFailed))

	_, err = DecodeValue(nil)
	assert.True(t, errors.Is(err, errors.ErrCodeDecodeFailed))
}

func TestInto(t *testing.T) {
	env := sample(t)
	var groups []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, env.Into(&groups))
	require.Len(t, groups, 1)
	assert.Equal(t, "Crows", groups[0].Name)

	var wrong map[string]string
	assert.True(t, errors.Is(env.Into(&wrong), errors.ErrCodeDecodeFailed))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	d, ok := r.Lookup(DomainPatrols)
	require.True(t, ok)
	assert.Equal(t, DomainGroups, d.Domain)
	assert.Equal(t, "patrols", d.Key)
	assert.Equal(t, DomainGroups, r.Canonical(DomainPatrols))

	d, ok = r.ForKey("activePatrolSheets")
	require.True(t, ok)
	assert.Equal(t, DomainActivePopups, d.Domain)
	assert.True(t, d.Privileged)

	_, ok = r.ForKey("gameTokens")
	assert.False(t, ok, "event persistence keys are not snapshot keys")

	d, ok = r.Lookup(DomainTokens)
	require.True(t, ok)
	assert.Equal(t, KindEvent, d.Kind)

	_, ok = r.Lookup(DomainAll)
	assert.False(t, ok)

	r.Register(Descriptor{Domain: DomainGroups, Kind: KindSnapshot, Key: "rosters"})
	_, ok = r.ForKey("patrols")
	assert.False(t, ok)
	_, ok = r.ForKey("rosters")
	assert.True(t, ok)
}

func quote(t *testing.T, s string) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}
