package paths

import (
	"path/filepath"
	"testing"
)

func TestHomeOverride(t *testing.T) {
	root := t.TempDir()
	t.Setenv(HomeEnv, root)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"config", ConfigDir(), filepath.Join(root, "config", "crownest")},
		{"data", DataDir(), filepath.Join(root, "data", "crownest")},
		{"state", StateDir(), filepath.Join(root, "state", "crownest")},
		{"socket", SocketPath(), filepath.Join(root, "run", "relay.sock")},
		{"pid", PidFilePath(), filepath.Join(root, "state", "crownest", "relay.pid")},
		{"store", StoreFilePath(), filepath.Join(root, "data", "crownest", "table.yml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}

	if err := EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
}

func TestXDGOverride(t *testing.T) {
	t.Setenv(HomeEnv, "")
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if got := ConfigDir(); got != filepath.Join(dir, "crownest") {
		t.Errorf("unexpected config dir %s", got)
	}
}
