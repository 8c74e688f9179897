// Package paths provides XDG-compliant path resolution for crownest.
//
// Resolution order:
// 1. CROWNEST_HOME (portable root) → $CROWNEST_HOME/{config,data,state,run}
// 2. XDG env vars → $XDG_*_HOME/crownest
// 3. Platform defaults → ~/.config/crownest, ~/.local/share/crownest, etc.
package paths

import (
	"os"
	"path/filepath"
)

const appName = "crownest"

// HomeEnv overrides every base directory with a single root.
const HomeEnv = "CROWNEST_HOME"

func base(homeSub, xdgEnv string, fallback ...string) string {
	if home := os.Getenv(HomeEnv); home != "" {
		return filepath.Join(home, homeSub)
	}
	if dir := os.Getenv(xdgEnv); dir != "" {
		return dir
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append([]string{homeDir}, fallback...)...)
	}
	return ""
}

func appDir(b string) string {
	if b == "" {
		return ""
	}
	return filepath.Join(b, appName)
}

// ConfigDir holds crownest.yml / crownest.toml.
func ConfigDir() string {
	return appDir(base("config", "XDG_CONFIG_HOME", ".config"))
}

// DataDir holds the shared file store and the relay's data file.
func DataDir() string {
	return appDir(base("data", "XDG_DATA_HOME", ".local", "share"))
}

// StateDir holds the relay PID file and logs.
func StateDir() string {
	return appDir(base("state", "XDG_STATE_HOME", ".local", "state"))
}

// RuntimeDir returns the directory for the relay socket.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// SocketPath returns the path to the relay unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "relay.sock")
}

// PidFilePath returns the path to the relay PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "relay.pid")
}

// StoreFilePath is the default file store shared by local participants.
func StoreFilePath() string {
	return filepath.Join(DataDir(), "table.yml")
}

// RelayDataPath is where the relay persists its space.
func RelayDataPath() string {
	return filepath.Join(DataDir(), "relay.yml")
}

// EnsureDirs creates all crownest directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), DataDir(), StateDir(), RuntimeDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
