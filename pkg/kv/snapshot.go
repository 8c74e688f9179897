package kv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Space is every stored entry, by namespace then key.
type Space map[string]map[string]Entry

// Lookup returns the entry for namespace/key.
func (s Space) Lookup(namespace, key string) (Entry, bool) {
	e, ok := s[namespace][key]
	return e, ok
}

func (s Space) put(namespace, key string, e Entry) {
	if s[namespace] == nil {
		s[namespace] = make(map[string]Entry)
	}
	s[namespace][key] = e
}

// Clone copies the space. Entry values are shared; they are never mutated.
func (s Space) Clone() Space {
	out := make(Space, len(s))
	for ns, keys := range s {
		m := make(map[string]Entry, len(keys))
		for k, e := range keys {
			m[k] = e
		}
		out[ns] = m
	}
	return out
}

// fileEntry is the on-disk form of an Entry. Values are stored as JSON text
// so any snapshot round-trips unchanged.
type fileEntry struct {
	Value     string    `yaml:"value"`
	Origin    string    `yaml:"origin,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// LoadSpace reads a snapshot file. A missing file yields an empty space.
func LoadSpace(path string) (Space, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(Space), nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}

	var raw map[string]map[string]fileEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse store file: %w", err)
	}

	space := make(Space, len(raw))
	for ns, keys := range raw {
		for k, fe := range keys {
			if !json.Valid([]byte(fe.Value)) {
				return nil, fmt.Errorf("parse store file: %s/%s holds invalid JSON", ns, k)
			}
			space.put(ns, k, Entry{
				Value:     json.RawMessage(fe.Value),
				Origin:    fe.Origin,
				UpdatedAt: fe.UpdatedAt,
			})
		}
	}
	return space, nil
}

// SaveSpace writes a snapshot file atomically.
func SaveSpace(path string, space Space) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	raw := make(map[string]map[string]fileEntry, len(space))
	for ns, keys := range space {
		m := make(map[string]fileEntry, len(keys))
		for k, e := range keys {
			m[k] = fileEntry{Value: string(e.Value), Origin: e.Origin, UpdatedAt: e.UpdatedAt}
		}
		raw[ns] = m
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write store file: %w", err)
	}
	return nil
}
