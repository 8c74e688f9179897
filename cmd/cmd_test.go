package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/pkg/envelope"
)

// run executes the command line in-process against an isolated home.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("CROWNEST_HOME", home)
	t.Chdir(home)
	return filepath.Join(home, "table.yml")
}

func TestReadPayload(t *testing.T) {
	raw, err := readPayload(`{"despair":1}`, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"despair":1}`, string(raw))

	raw, err = readPayload("-", strings.NewReader(`[1,2]`))
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(raw))

	path := filepath.Join(t.TempDir(), "groups.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0644))
	raw, err = readPayload("@"+path, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	_, err = readPayload("{not json", nil)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = readPayload("@"+filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestDomainFilter(t *testing.T) {
	all, err := newDomainFilter(nil)
	require.NoError(t, err)
	assert.True(t, all.Match(envelope.DomainGroups))

	f, err := newDomainFilter([]string{"*", "!presets"})
	require.NoError(t, err)
	assert.True(t, f.Match(envelope.DomainTokens))
	assert.False(t, f.Match(envelope.DomainPresets))

	stats, err := newDomainFilter([]string{"stat*"})
	require.NoError(t, err)
	assert.True(t, stats.Match(envelope.DomainStats))
	assert.False(t, stats.Match(envelope.DomainGroups))
}

func TestLogFiles(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	for _, name := range []string{"relay-2026-10-17.log", "stores-2026-10-17.log", "relay-2026-10-16.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("line\n"), 0644))
	}

	files, err := logFiles(dir, day, nil)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "relay-2026-10-17.log"), files["relay"])

	files, err = logFiles(dir, day, []string{"stores"})
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Contains(t, files, "stores")
}

func TestTailFilesPrintsExistingLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.log")
	require.NoError(t, os.WriteFile(path, []byte("first\nsecond\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, tailFiles(context.Background(), &out, map[string]string{"relay": path}, false))
	assert.Equal(t, "first\nsecond\n", out.String())
}

func TestPrintEventsUsesProducerTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 20, 15, 30, 0, time.UTC)
	env, err := envelope.New(envelope.DomainTokens, envelope.ActionUpdate, map[string]int{"despair": 2}, "gm-1", at)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan envelope.Envelope)
	done := make(chan error, 1)
	var out bytes.Buffer
	go func() { done <- printEvents(ctx, &out, events, false) }()

	events <- env
	cancel()
	require.NoError(t, <-done)

	line := out.String()
	assert.Contains(t, line, at.Local().Format("15:04:05"))
	assert.Contains(t, line, "tokens")
	assert.Contains(t, line, "by gm-1")
}

func TestTokensThroughFileStore(t *testing.T) {
	store := isolate(t)

	_, err := run(t, "tokens", "despair", "2", "--role", "gm", "--participant", "gm-1", "--store", "file", "--store-path", store)
	require.NoError(t, err)

	out, err := run(t, "get", "tokens", "--store", "file", "--store-path", store)
	require.NoError(t, err)
	assert.JSONEq(t, `{"despair":2,"cheers":0}`, out)

	out, err = run(t, "tokens", "--json", "--store", "file", "--store-path", store)
	require.NoError(t, err)
	assert.JSONEq(t, `{"despair":2,"cheers":0}`, out)
}

func TestPlayerCannotAdjustTokens(t *testing.T) {
	store := isolate(t)

	_, err := run(t, "tokens", "cheers", "1", "--role", "player", "--store", "file", "--store-path", store)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePermissionDenied))

	_, err = run(t, "set", "stats", `{}`, "--role", "player", "--store", "file", "--store-path", store)
	assert.True(t, errors.Is(err, errors.ErrCodePermissionDenied))
}

func TestSetUnknownDomain(t *testing.T) {
	store := isolate(t)
	_, err := run(t, "set", "weather", `{}`, "--role", "gm", "--store", "file", "--store-path", store)
	assert.True(t, errors.Is(err, errors.ErrCodeUnknownDomain))
}

func TestGetMissingSnapshot(t *testing.T) {
	store := isolate(t)
	_, err := run(t, "get", "groups", "--store", "file", "--store-path", store)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestInvalidRole(t *testing.T) {
	isolate(t)
	_, err := run(t, "tokens", "--role", "dragon", "--store", "memory")
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}

func TestVersionJSON(t *testing.T) {
	out, err := run(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"protocol": 1`)
}
