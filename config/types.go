package config

import (
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

const (
	DefaultNamespace    = "crow-nest"
	DefaultWriteTimeout = 5 * time.Second
	DefaultRelayListen  = "" // empty means the unix socket under the runtime dir
)

// Duration is a time.Duration written as "250ms", "5s", ... in config files
// and environment variables.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// JSONSchema describes durations as strings.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$|^0$`,
		Description: "Go duration, e.g. 250ms or 5s",
	}
}

// ParticipantConfig identifies the local participant.
type ParticipantConfig struct {
	ID   string `yaml:"id,omitempty" toml:"id,omitempty" json:"id,omitempty" env:"ID" jsonschema:"description=Stable participant id recorded as the origin of every write"`
	Name string `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty" env:"NAME" jsonschema:"description=Display name"`
	Role string `yaml:"role,omitempty" toml:"role,omitempty" json:"role,omitempty" env:"ROLE" jsonschema:"enum=gm,enum=player,description=Table role; only the GM may change privileged domains"`
}

// StoreConfig selects the replicated store.
type StoreConfig struct {
	Backend  string   `yaml:"backend,omitempty" toml:"backend,omitempty" json:"backend,omitempty" env:"BACKEND" jsonschema:"enum=auto,enum=memory,enum=file,enum=relay,description=Store backend; auto prefers a running relay and falls back to the file store"`
	Path     string   `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" env:"PATH" jsonschema:"description=File store location"`
	Relay    string   `yaml:"relay,omitempty" toml:"relay,omitempty" json:"relay,omitempty" env:"RELAY" jsonschema:"description=Relay address (unix:///path or tcp://host:port)"`
	Debounce Duration `yaml:"debounce,omitempty" toml:"debounce,omitempty" json:"debounce,omitempty" env:"DEBOUNCE" jsonschema:"description=Coalescing window for external file store changes"`
}

// SyncConfig tunes the sync manager.
type SyncConfig struct {
	Debounce     Duration `yaml:"debounce,omitempty" toml:"debounce,omitempty" json:"debounce,omitempty" env:"DEBOUNCE" jsonschema:"description=Trailing window for coalescing inbound snapshot updates per domain; 0 disables"`
	WriteTimeout Duration `yaml:"write_timeout,omitempty" toml:"write_timeout,omitempty" json:"write_timeout,omitempty" env:"WRITE_TIMEOUT" jsonschema:"description=Upper bound for a single store write"`
}

// RelayConfig configures `crownest relay start`.
type RelayConfig struct {
	Listen   string `yaml:"listen,omitempty" toml:"listen,omitempty" json:"listen,omitempty" env:"LISTEN" jsonschema:"description=Listen address (unix:///path or tcp://host:port)"`
	DataFile string `yaml:"data_file,omitempty" toml:"data_file,omitempty" json:"data_file,omitempty" env:"DATA_FILE" jsonschema:"description=Where the relay persists the shared space"`
	Shape    string `yaml:"shape,omitempty" toml:"shape,omitempty" json:"shape,omitempty" env:"SHAPE" jsonschema:"enum=raw,enum=string,enum=wrapped,description=Notification value shape used internally by the relay"`
}

// Config is the crownest.yml / crownest.toml document.
type Config struct {
	Version     string            `yaml:"version" toml:"version" json:"version" jsonschema:"required,description=Configuration version (e.g. '1.0')"`
	Namespace   string            `yaml:"namespace,omitempty" toml:"namespace,omitempty" json:"namespace,omitempty" env:"NAMESPACE" jsonschema:"description=Key namespace shared by every participant of a table"`
	Participant ParticipantConfig `yaml:"participant,omitempty" toml:"participant,omitempty" json:"participant,omitempty" envPrefix:"PARTICIPANT_"`
	Store       StoreConfig       `yaml:"store,omitempty" toml:"store,omitempty" json:"store,omitempty" envPrefix:"STORE_"`
	Sync        SyncConfig        `yaml:"sync,omitempty" toml:"sync,omitempty" json:"sync,omitempty" envPrefix:"SYNC_"`
	Relay       RelayConfig       `yaml:"relay,omitempty" toml:"relay,omitempty" json:"relay,omitempty" envPrefix:"RELAY_"`

	// Extensions captures all other top-level keys, e.g. "logging".
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{Version: "1.0"}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.Participant.Role == "" {
		c.Participant.Role = "player"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "auto"
	}
	if c.Sync.WriteTimeout == 0 {
		c.Sync.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if c.Relay.Shape == "" {
		c.Relay.Shape = "string"
	}
}

// Validate checks the rules the schema cannot express.
func (c *Config) Validate() error {
	switch c.Participant.Role {
	case "gm", "player":
	default:
		return fmt.Errorf("participant.role must be gm or player, got %q", c.Participant.Role)
	}
	switch c.Store.Backend {
	case "auto", "memory", "file", "relay":
	default:
		return fmt.Errorf("store.backend must be auto, memory, file or relay, got %q", c.Store.Backend)
	}
	if c.Sync.Debounce < 0 || c.Sync.WriteTimeout < 0 || c.Store.Debounce < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// UnmarshalExtension decodes an extension section, such as "logging",
// into target using its yaml tags. A missing section leaves target untouched.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
