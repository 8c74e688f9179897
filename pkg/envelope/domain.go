package envelope

import (
	"sort"
	"sync"
)

// Domain names a category of synchronized state.
type Domain string

const (
	DomainStats        Domain = "stats"
	DomainModifiers    Domain = "modifiers"
	DomainResources    Domain = "resources"
	DomainTokens       Domain = "tokens"
	DomainPatrols      Domain = "patrols"
	DomainAdmins       Domain = "admins"
	DomainReputation   Domain = "reputation"
	DomainGroups       Domain = "groups"
	DomainPatrolSheet  Domain = "patrol-sheet"
	DomainPresets      Domain = "presets"
	DomainActivePopups Domain = "active-popups"

	// DomainAll is a subscription wildcard. It is never broadcast.
	DomainAll Domain = "all"
)

// EventKey is the shared key every event-domain envelope is written to.
const EventKey = "syncEvent"

// Kind says how a domain travels through the store.
type Kind int

const (
	// KindSnapshot domains own a dedicated key; the stored value is the snapshot.
	KindSnapshot Kind = iota
	// KindEvent domains travel as envelopes on EventKey.
	KindEvent
)

func (k Kind) String() string {
	if k == KindEvent {
		return "event"
	}
	return "snapshot"
}

// Descriptor describes where a domain lives in the store and who may write it.
type Descriptor struct {
	Domain Domain
	Kind   Kind
	// Key is the dedicated key of a snapshot domain, or the optional
	// persistence key of an event domain.
	Key string
	// Privileged domains may only be mutated by the GM.
	Privileged bool
}

// Registry maps domains and aliases to descriptors.
type Registry struct {
	mu      sync.RWMutex
	domains map[Domain]Descriptor
	aliases map[Domain]Domain
	byKey   map[string]Domain
}

func NewRegistry() *Registry {
	return &Registry{
		domains: make(map[Domain]Descriptor),
		aliases: make(map[Domain]Domain),
		byKey:   make(map[string]Domain),
	}
}

// DefaultRegistry returns the built-in table domains.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Descriptor{Domain: DomainGroups, Kind: KindSnapshot, Key: "patrols"})
	r.Register(Descriptor{Domain: DomainPresets, Kind: KindSnapshot, Key: "unifiedPresets"})
	r.Register(Descriptor{Domain: DomainAdmins, Kind: KindSnapshot, Key: "admins"})
	r.Register(Descriptor{Domain: DomainActivePopups, Kind: KindSnapshot, Key: "activePatrolSheets", Privileged: true})
	r.Register(Descriptor{Domain: DomainStats, Kind: KindEvent, Key: "stats", Privileged: true})
	r.Register(Descriptor{Domain: DomainModifiers, Kind: KindEvent, Key: "modifiers", Privileged: true})
	r.Register(Descriptor{Domain: DomainResources, Kind: KindEvent, Key: "resources", Privileged: true})
	r.Register(Descriptor{Domain: DomainReputation, Kind: KindEvent, Key: "reputation", Privileged: true})
	r.Register(Descriptor{Domain: DomainTokens, Kind: KindEvent, Key: "gameTokens", Privileged: true})
	r.Register(Descriptor{Domain: DomainPatrolSheet, Kind: KindEvent, Privileged: true})
	r.Alias(DomainPatrols, DomainGroups)
	r.Alias("unifiedPresets", DomainPresets)
	return r
}

// Register adds or replaces a domain descriptor.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.domains[d.Domain]; ok && old.Kind == KindSnapshot {
		delete(r.byKey, old.Key)
	}
	r.domains[d.Domain] = d
	if d.Kind == KindSnapshot && d.Key != "" {
		r.byKey[d.Key] = d.Domain
	}
}

// Alias makes name resolve to the descriptor of target.
func (r *Registry) Alias(name, target Domain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[name] = target
}

// Lookup resolves a domain or alias.
func (r *Registry) Lookup(d Domain) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[d]; ok {
		d = target
	}
	desc, ok := r.domains[d]
	return desc, ok
}

// Canonical returns the registered name for d, following aliases.
func (r *Registry) Canonical(d Domain) Domain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[d]; ok {
		return target
	}
	return d
}

// ForKey returns the snapshot domain stored under key.
func (r *Registry) ForKey(key string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKey[key]
	if !ok {
		return Descriptor{}, false
	}
	return r.domains[d], true
}

// Domains lists registered domains in name order.
func (r *Registry) Domains() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.domains))
	for _, d := range r.domains {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}
