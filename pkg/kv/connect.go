package kv

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/logging"
	"github.com/grovetools/crownest/pkg/paths"
)

// Backend names a Store implementation.
type Backend string

const (
	BackendAuto   Backend = "auto"
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendRelay  Backend = "relay"
)

// ParseBackend accepts auto, memory, file or relay. Empty means auto.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendAuto, BackendMemory, BackendFile, BackendRelay:
		return b, nil
	case "":
		return BackendAuto, nil
	}
	return "", fmt.Errorf("unknown store backend %q", s)
}

// Options selects and configures the store a participant connects through.
type Options struct {
	Backend Backend
	// Origin is the participant id recorded on every write.
	Origin string
	// Path is the file store location. Defaults to paths.StoreFilePath.
	Path string
	// Relay is the relay address. Defaults to the local relay socket.
	Relay string
	// Debounce applies to the file store's external change detection.
	Debounce time.Duration
	// Memory is the shared space used by the memory backend. A private
	// space is created when nil.
	Memory *Memory
}

// Connect returns the store for opts. With BackendAuto it uses the relay
// when it answers and falls back to the file store otherwise, so callers
// never need to know whether a relay is running.
func Connect(ctx context.Context, opts Options) (Store, error) {
	logger := logging.NewLogger("kv")
	if opts.Relay == "" {
		opts.Relay = "unix://" + paths.SocketPath()
	}
	if opts.Path == "" {
		opts.Path = paths.StoreFilePath()
	}

	switch opts.Backend {
	case BackendMemory:
		mem := opts.Memory
		if mem == nil {
			var err error
			if mem, err = NewMemory(); err != nil {
				return nil, err
			}
		}
		return mem.Participant(opts.Origin), nil

	case BackendFile:
		return NewFile(opts.Path, opts.Origin, opts.Debounce)

	case BackendRelay:
		remote, err := NewRemote(opts.Relay, opts.Origin)
		if err != nil {
			return nil, err
		}
		if !remote.IsRunning(ctx) {
			remote.Close()
			return nil, errors.RelayUnavailable(opts.Relay, nil)
		}
		return remote, nil

	case BackendAuto, "":
		if relayReachable(opts.Relay) {
			if remote, err := NewRemote(opts.Relay, opts.Origin); err == nil {
				if remote.IsRunning(ctx) {
					logger.WithField("relay", opts.Relay).Debug("Using relay store")
					return remote, nil
				}
				remote.Close()
			}
		}
		logger.WithField("path", opts.Path).Debug("Relay not available, using file store")
		return NewFile(opts.Path, opts.Origin, opts.Debounce)
	}

	return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
}

// relayReachable avoids a slow HTTP probe when no socket exists.
func relayReachable(address string) bool {
	network, addr, err := ParseAddress(address)
	if err != nil {
		return false
	}
	if network == "unix" {
		if _, err := os.Stat(addr); err != nil {
			return false
		}
	}
	return true
}
