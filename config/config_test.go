package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/crownest/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "crownest.yml", `
version: "1.0"
namespace: table-7
participant:
  id: gm-1
  name: Morgan
  role: gm
store:
  backend: file
  path: /tmp/table.yml
sync:
  debounce: 250ms
  write_timeout: 2s
logging:
  level: debug
  format:
    preset: simple
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "table-7", cfg.Namespace)
	assert.Equal(t, "gm-1", cfg.Participant.ID)
	assert.Equal(t, "gm", cfg.Participant.Role)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.Debounce.Std())
	assert.Equal(t, 2*time.Second, cfg.Sync.WriteTimeout.Std())
	assert.Equal(t, "string", cfg.Relay.Shape)

	var logCfg struct {
		Level  string `yaml:"level"`
		Format struct {
			Preset string `yaml:"preset"`
		} `yaml:"format"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "debug", logCfg.Level)
	assert.Equal(t, "simple", logCfg.Format.Preset)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "crownest.toml", `
version = "1.0"

[participant]
id = "p1"
role = "player"

[sync]
debounce = "100ms"

[logging]
level = "warn"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "p1", cfg.Participant.ID)
	assert.Equal(t, DefaultNamespace, cfg.Namespace)
	assert.Equal(t, 100*time.Millisecond, cfg.Sync.Debounce.Std())
	assert.Equal(t, DefaultWriteTimeout, cfg.Sync.WriteTimeout.Std())

	var logCfg struct {
		Level string `yaml:"level"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "warn", logCfg.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad role", "version: \"1.0\"\nparticipant:\n  role: wizard\n"},
		{"bad backend", "version: \"1.0\"\nstore:\n  backend: carrier-pigeon\n"},
		{"bad duration", "version: \"1.0\"\nsync:\n  debounce: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.content), FormatYAML)
			require.Error(t, err)
			code := errors.GetCode(err)
			assert.Contains(t, []errors.ErrorCode{errors.ErrCodeConfigValidation, errors.ErrCodeConfigInvalid}, code)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CROWNEST_PARTICIPANT_ID", "p2")
	t.Setenv("CROWNEST_PARTICIPANT_ROLE", "gm")
	t.Setenv("CROWNEST_SYNC_DEBOUNCE", "40ms")
	t.Setenv("CROWNEST_TABLE", "night-watch")

	cfg, err := LoadFromBytes([]byte(`
version: "1.0"
namespace: ${CROWNEST_TABLE:-crow-nest}
relay:
  listen: ${CROWNEST_TEST_UNSET:-tcp://127.0.0.1:7420}
participant:
  id: p1
`), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "p2", cfg.Participant.ID)
	assert.Equal(t, "gm", cfg.Participant.Role)
	assert.Equal(t, 40*time.Millisecond, cfg.Sync.Debounce.Std())
	assert.Equal(t, "night-watch", cfg.Namespace)
	assert.Equal(t, "tcp://127.0.0.1:7420", cfg.Relay.Listen)
}

func TestFindConfigFileWalksUp(t *testing.T) {
	t.Setenv("CROWNEST_HOME", t.TempDir())
	root := t.TempDir()
	want := writeFile(t, root, "crownest.yaml", "version: \"1.0\"\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv("CROWNEST_HOME", t.TempDir())
	t.Setenv("CROWNEST_PARTICIPANT_ID", "solo")

	cfg, err := LoadOrDefault(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "solo", cfg.Participant.ID)
	assert.Equal(t, "auto", cfg.Store.Backend)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"write_timeout"`)
	assert.NotContains(t, string(data), `"Extensions"`)
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())
	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
	assert.Error(t, d.UnmarshalText([]byte("later")))
}
