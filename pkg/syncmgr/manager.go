// Package syncmgr replicates domain snapshots and events between the
// participants of a table through a shared kv.Store.
//
// A Manager writes outgoing envelopes with Broadcast and runs one listener
// goroutine that turns store notifications back into envelopes, drops the
// participant's own echoes and duplicates, and dispatches the rest to the
// handlers registered with Subscribe.
package syncmgr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/crownest/errors"
	"github.com/grovetools/crownest/logging"
	"github.com/grovetools/crownest/pkg/envelope"
	"github.com/grovetools/crownest/pkg/kv"
	"github.com/grovetools/crownest/pkg/models"
)

// DefaultNamespace is the store namespace shared by a table.
const DefaultNamespace = "crow-nest"

// Options configures a Manager.
type Options struct {
	Store       kv.Store
	Participant models.Participant
	Namespace   string
	Registry    *envelope.Registry
	Logger      *logrus.Entry

	// Debounce coalesces inbound snapshot updates per domain. Zero disables it.
	Debounce time.Duration
	// WriteTimeout bounds every store write. Zero means no bound beyond ctx.
	WriteTimeout time.Duration

	// Now stamps outgoing envelopes. Defaults to time.Now.
	Now func() time.Time
	// NewSyncID generates the nonce of event envelopes. Defaults to uuid.NewString.
	NewSyncID func() string
}

// Manager is the sync core of one participant session.
type Manager struct {
	store       kv.Store
	participant models.Participant
	namespace   string
	registry    *envelope.Registry
	logger      *logrus.Entry
	debounce    time.Duration
	timeout     time.Duration
	now         func() time.Time
	newSyncID   func() string

	mu            sync.RWMutex
	listeners     map[envelope.Domain][]subscription
	eventHandlers map[envelope.Domain]Handler
	lastSeen      map[envelope.Domain]envelope.Envelope
	nextID        SubscriptionID

	seen  *recentIDs
	stats counters

	lifeMu  sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a Manager. Start must be called before remote changes are
// dispatched; Broadcast works without it.
func New(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "sync manager requires a store")
	}
	if opts.Participant.ID == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "sync manager requires a participant id")
	}
	m := &Manager{
		store:         opts.Store,
		participant:   opts.Participant,
		namespace:     opts.Namespace,
		registry:      opts.Registry,
		logger:        opts.Logger,
		debounce:      opts.Debounce,
		timeout:       opts.WriteTimeout,
		now:           opts.Now,
		newSyncID:     opts.NewSyncID,
		listeners:     make(map[envelope.Domain][]subscription),
		eventHandlers: make(map[envelope.Domain]Handler),
		lastSeen:      make(map[envelope.Domain]envelope.Envelope),
		seen:          newRecentIDs(recentIDCapacity),
	}
	if m.namespace == "" {
		m.namespace = DefaultNamespace
	}
	if m.registry == nil {
		m.registry = envelope.DefaultRegistry()
	}
	if m.logger == nil {
		m.logger = logging.NewLogger("syncmgr")
	}
	m.logger = m.logger.WithField("participant", m.participant.ID)
	if m.now == nil {
		m.now = time.Now
	}
	if m.newSyncID == nil {
		m.newSyncID = uuid.NewString
	}
	return m, nil
}

// Participant returns the session participant.
func (m *Manager) Participant() models.Participant { return m.participant }

// Namespace returns the store namespace the manager reads and writes.
func (m *Manager) Namespace() string { return m.namespace }

// Now reads the session clock.
func (m *Manager) Now() time.Time { return m.now() }

// Registry returns the domain registry.
func (m *Manager) Registry() *envelope.Registry { return m.registry }

// Envelope builds an envelope stamped with the session participant and clock.
func (m *Manager) Envelope(domain envelope.Domain, action envelope.Action, data any) (envelope.Envelope, error) {
	return envelope.New(domain, action, data, m.participant.ID, m.now())
}

// Authorize reports whether the session participant may mutate domain.
// Broadcast itself does not check; callers gate before applying anything.
func (m *Manager) Authorize(domain envelope.Domain) error {
	desc, ok := m.registry.Lookup(domain)
	if !ok {
		return errors.UnknownDomain(string(domain))
	}
	if desc.Privileged && !m.participant.IsGM() {
		return errors.PermissionDenied(m.participant.ID, string(desc.Domain))
	}
	return nil
}

// Broadcast writes env to the store and returns once the store accepted it.
//
// Snapshot domains are written to their dedicated key. Event domains are
// written to the shared event key with a fresh sync id; an update to an
// event domain with a persistence key writes the snapshot there first.
func (m *Manager) Broadcast(ctx context.Context, env envelope.Envelope) error {
	if env.Domain == envelope.DomainAll {
		return errors.New(errors.ErrCodeInvalidInput, "cannot broadcast to the 'all' wildcard")
	}
	desc, ok := m.registry.Lookup(env.Domain)
	if !ok {
		return errors.UnknownDomain(string(env.Domain))
	}
	if !env.Action.Valid() {
		return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown action '%s'", env.Action))
	}
	if env.Origin == "" {
		env.Origin = m.participant.ID
	}
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("null")
	}

	logger := m.logger.WithFields(logrus.Fields{
		"domain": env.Domain,
		"action": env.Action,
	})

	if desc.Kind == envelope.KindSnapshot {
		if err := m.write(ctx, desc.Key, env.Data); err != nil {
			logger.WithError(err).Warn("Broadcast failed")
			return err
		}
		logger.Debug("Broadcast snapshot")
		return nil
	}

	env.SyncID = m.newSyncID()
	payload, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode envelope")
	}

	persist := desc.Key != "" && env.Action == envelope.ActionUpdate
	var previous json.RawMessage
	if persist {
		if previous, err = m.read(ctx, desc.Key); err != nil {
			logger.WithError(err).Warn("Reading event domain failed")
			return err
		}
		if err := m.write(ctx, desc.Key, env.Data); err != nil {
			logger.WithError(err).Warn("Persisting event domain failed")
			return err
		}
	}

	if err := m.write(ctx, envelope.EventKey, json.RawMessage(payload)); err != nil {
		logger.WithError(err).Warn("Broadcast failed")
		if persist {
			// Nobody was told about the new snapshot, so it must not stay stored.
			if rerr := m.write(context.WithoutCancel(ctx), desc.Key, previous); rerr != nil {
				logger.WithError(rerr).Error("Failed to restore event domain after failed broadcast")
			}
		}
		return err
	}
	logger.WithField("sync_id", env.SyncID).Debug("Broadcast event")
	return nil
}

func (m *Manager) write(ctx context.Context, key string, value json.RawMessage) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.store.Set(ctx, m.namespace, key, value)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.PersistenceFailed(m.namespace, key, err)
		}
		return nil
	case <-ctx.Done():
		return errors.PersistenceFailed(m.namespace, key, ctx.Err())
	}
}

// read returns the raw value stored at key, or JSON null when the key is
// unset. null is what Fetch reports as "nothing stored".
func (m *Manager) read(ctx context.Context, key string) (json.RawMessage, error) {
	raw, found, err := m.store.Get(ctx, m.namespace, key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePersistenceFailed,
			fmt.Sprintf("failed to read %s/%s", m.namespace, key)).
			WithDetail("key", key)
	}
	if !found || raw == nil {
		return json.RawMessage("null"), nil
	}
	value, err := envelope.DecodeValue(raw)
	if err != nil {
		// An unreadable value is restored as nothing stored.
		return json.RawMessage("null"), nil
	}
	return value, nil
}

// Fetch reads the stored snapshot of a domain. The second result is false
// when nothing has been written yet.
func (m *Manager) Fetch(ctx context.Context, domain envelope.Domain) (json.RawMessage, bool, error) {
	desc, ok := m.registry.Lookup(domain)
	if !ok {
		return nil, false, errors.UnknownDomain(string(domain))
	}
	if desc.Key == "" {
		return nil, false, errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("domain '%s' has no stored snapshot", desc.Domain))
	}
	raw, found, err := m.store.Get(ctx, m.namespace, desc.Key)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodePersistenceFailed,
			fmt.Sprintf("failed to read %s/%s", m.namespace, desc.Key)).
			WithDetail("key", desc.Key)
	}
	if !found || raw == nil {
		return nil, false, nil
	}
	value, err := envelope.DecodeValue(raw)
	if err != nil {
		return nil, false, err
	}
	if string(bytes.TrimSpace(value)) == "null" {
		return nil, false, nil
	}
	return value, true, nil
}

// Start attaches the listener to the store. It returns once the first
// watch is registered, so writes made after Start returns are observed.
// The listener stops when ctx is cancelled; Start may then be called again.
func (m *Manager) Start(ctx context.Context) error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if m.started {
		select {
		case <-m.done:
			// The previous ctx was cancelled; start over with this one.
			m.cancel()
			m.started = false
		default:
			return nil
		}
	}

	lctx, cancel := context.WithCancel(ctx)
	ch, err := m.store.Watch(lctx)
	if err != nil {
		cancel()
		return errors.Wrap(err, errors.ErrCodePersistenceFailed, "failed to watch store")
	}

	m.started = true
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.listen(lctx, ch, m.done)

	m.logger.WithFields(logrus.Fields{
		"namespace": m.namespace,
		"debounce":  m.debounce,
	}).Debug("Sync listener started")
	return nil
}

// Close stops the listener and waits for it to exit. Pending debounced
// updates are dropped.
func (m *Manager) Close() error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if !m.started {
		return nil
	}
	m.cancel()
	<-m.done
	m.started = false
	return nil
}
