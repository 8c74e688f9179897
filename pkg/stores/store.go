// Package stores holds the per-domain snapshots of a session. Each store
// applies local mutations optimistically, broadcasts the full snapshot, and
// replaces its snapshot wholesale when a remote update arrives.
package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/logging"
	"github.com/grovetools/crownest/pkg/envelope"
	"github.com/grovetools/crownest/pkg/syncmgr"
)

// Source says where a snapshot change came from.
type Source int

const (
	SourceLoad Source = iota
	SourceLocal
	SourceRemote
	SourceRollback
)

func (s Source) String() string {
	switch s {
	case SourceLoad:
		return "load"
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	case SourceRollback:
		return "rollback"
	}
	return "unknown"
}

// Change is passed to OnChange callbacks.
type Change[T any] struct {
	Value  T
	Source Source
	// Envelope is set for remote changes.
	Envelope *envelope.Envelope
}

// Store is the snapshot of one domain.
type Store[T any] struct {
	mgr       *syncmgr.Manager
	desc      envelope.Descriptor
	logger    *logrus.Entry
	normalize func(*T)

	// mutateMu serialises read-modify-write cycles of local mutations.
	mutateMu sync.Mutex

	mu         sync.Mutex
	value      T
	generation uint64
	callbacks  map[int]func(Change[T])
	nextCB     int
	subID      syncmgr.SubscriptionID
	attached   bool
}

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithNormalize runs fn on every snapshot the store adopts.
func WithNormalize[T any](fn func(*T)) Option[T] {
	return func(s *Store[T]) { s.normalize = fn }
}

// WithInitial sets the snapshot used before Load finds anything.
func WithInitial[T any](v T) Option[T] {
	return func(s *Store[T]) { s.value = v }
}

// New creates a store for domain and subscribes it to remote updates.
func New[T any](mgr *syncmgr.Manager, domain envelope.Domain, opts ...Option[T]) (*Store[T], error) {
	desc, ok := mgr.Registry().Lookup(domain)
	if !ok {
		return nil, errors.UnknownDomain(string(domain))
	}
	s := &Store[T]{
		mgr:       mgr,
		desc:      desc,
		logger:    logging.NewLogger("stores").WithField("domain", desc.Domain),
		callbacks: make(map[int]func(Change[T])),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.normalize != nil {
		s.normalize(&s.value)
	}
	s.Attach()
	return s, nil
}

// Domain returns the store's canonical domain.
func (s *Store[T]) Domain() envelope.Domain { return s.desc.Domain }

// Attach subscribes to remote updates. Calling it again is a no-op.
func (s *Store[T]) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return
	}
	s.subID = s.mgr.Subscribe(s.desc.Domain, s.handleRemote)
	s.attached = true
}

// Detach stops applying remote updates.
func (s *Store[T]) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return
	}
	s.mgr.Unsubscribe(s.desc.Domain, s.subID)
	s.attached = false
}

// Load seeds the snapshot from the shared store. A missing key keeps the
// current snapshot.
func (s *Store[T]) Load(ctx context.Context) error {
	if s.desc.Key == "" {
		return nil
	}
	raw, found, err := s.mgr.Fetch(ctx, s.desc.Domain)
	if err != nil {
		return err
	}
	if !found {
		s.logger.Debug("No stored snapshot")
		return nil
	}
	next, err := s.decode(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.value = next
	s.generation++
	s.mu.Unlock()

	s.notify(Change[T]{Value: s.Snapshot(), Source: SourceLoad})
	return nil
}

// Snapshot returns a deep copy of the current value.
func (s *Store[T]) Snapshot() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := clone(s.value)
	if err != nil {
		s.logger.WithError(err).Error("Failed to copy snapshot")
		return s.value
	}
	return out
}

// Mutate replaces the snapshot with next and broadcasts it. If the
// broadcast fails the previous snapshot is restored, unless a remote update
// replaced it in the meantime, and the error is returned.
func (s *Store[T]) Mutate(ctx context.Context, next T) error {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()
	return s.mutate(ctx, next)
}

// Update applies fn to a copy of the snapshot and mutates with the result.
// An error from fn aborts without writing.
func (s *Store[T]) Update(ctx context.Context, fn func(*T) error) error {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()
	if err := s.gate(); err != nil {
		return err
	}
	next := s.Snapshot()
	if err := fn(&next); err != nil {
		return err
	}
	return s.mutate(ctx, next)
}

func (s *Store[T]) gate() error {
	if err := s.mgr.Authorize(s.desc.Domain); err != nil {
		s.logger.WithField("participant", s.mgr.Participant().ID).Warn("Rejected change to privileged domain")
		return err
	}
	return nil
}

func (s *Store[T]) mutate(ctx context.Context, next T) error {
	if err := s.gate(); err != nil {
		return err
	}
	if s.normalize != nil {
		s.normalize(&next)
	}
	copied, err := clone(next)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, fmt.Sprintf("failed to encode %s snapshot", s.desc.Domain))
	}
	env, err := s.mgr.Envelope(s.desc.Domain, envelope.ActionUpdate, copied)
	if err != nil {
		return err
	}

	s.mu.Lock()
	previous := s.value
	s.value = copied
	s.generation++
	applied := s.generation
	s.mu.Unlock()
	s.notify(Change[T]{Value: s.Snapshot(), Source: SourceLocal})

	if err := s.mgr.Broadcast(ctx, env); err != nil {
		s.mu.Lock()
		restored := s.generation == applied
		if restored {
			s.value = previous
			s.generation++
		}
		s.mu.Unlock()

		if restored {
			s.logger.WithError(err).Warn("Broadcast failed, rolled back local change")
			s.notify(Change[T]{Value: s.Snapshot(), Source: SourceRollback})
		} else {
			s.logger.WithError(err).Warn("Broadcast failed after a newer remote update, keeping remote snapshot")
		}
		return err
	}
	return nil
}

// handleRemote replaces the snapshot with a remote update. Other actions
// carry no snapshot and are ignored.
func (s *Store[T]) handleRemote(env envelope.Envelope) {
	if env.Action != envelope.ActionUpdate {
		return
	}
	next, err := s.decode(env.Data)
	if err != nil {
		s.logger.WithError(err).WithField("origin", env.Origin).Warn("Dropping malformed remote snapshot")
		return
	}

	s.mu.Lock()
	s.value = next
	s.generation++
	s.mu.Unlock()

	s.notify(Change[T]{Value: s.Snapshot(), Source: SourceRemote, Envelope: &env})
}

func (s *Store[T]) decode(raw json.RawMessage) (T, error) {
	var next T
	if err := json.Unmarshal(raw, &next); err != nil {
		return next, errors.DecodeFailed(fmt.Sprintf("%s snapshot", s.desc.Domain), err)
	}
	if s.normalize != nil {
		s.normalize(&next)
	}
	return next, nil
}

// OnChange registers fn for every snapshot replacement. The returned
// function removes it.
func (s *Store[T]) OnChange(fn func(Change[T])) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextCB
	s.nextCB++
	s.callbacks[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.callbacks, id)
	}
}

func (s *Store[T]) notify(c Change[T]) {
	s.mu.Lock()
	fns := make([]func(Change[T]), 0, len(s.callbacks))
	for i := 0; i < s.nextCB; i++ {
		if fn, ok := s.callbacks[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// clone deep-copies v through its JSON form, which is also its wire form.
func clone[T any](v T) (T, error) {
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}
