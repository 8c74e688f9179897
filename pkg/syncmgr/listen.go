package syncmgr

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/crownest/pkg/envelope"
	"github.com/grovetools/crownest/pkg/kv"
)

const (
	recentIDCapacity = 512

	minBackoff = 100 * time.Millisecond
	maxBackoff = 5 * time.Second
)

// Stats counts what the listener did with inbound notifications.
type Stats struct {
	Dispatched    uint64 `json:"dispatched"`
	SelfEcho      uint64 `json:"self_echo"`
	Duplicate     uint64 `json:"duplicate"`
	DecodeErrors  uint64 `json:"decode_errors"`
	Coalesced     uint64 `json:"coalesced"`
	Ignored       uint64 `json:"ignored"`
	HandlerPanics uint64 `json:"handler_panics"`
	Rewatches     uint64 `json:"rewatches"`
}

type counters struct {
	dispatched    atomic.Uint64
	selfEcho      atomic.Uint64
	duplicate     atomic.Uint64
	decodeErrors  atomic.Uint64
	coalesced     atomic.Uint64
	ignored       atomic.Uint64
	handlerPanics atomic.Uint64
	rewatches     atomic.Uint64
}

// Stats returns a snapshot of the listener counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Dispatched:    m.stats.dispatched.Load(),
		SelfEcho:      m.stats.selfEcho.Load(),
		Duplicate:     m.stats.duplicate.Load(),
		DecodeErrors:  m.stats.decodeErrors.Load(),
		Coalesced:     m.stats.coalesced.Load(),
		Ignored:       m.stats.ignored.Load(),
		HandlerPanics: m.stats.handlerPanics.Load(),
		Rewatches:     m.stats.rewatches.Load(),
	}
}

// pendingUpdate is a debounced snapshot update waiting for its window to pass.
type pendingUpdate struct {
	env      envelope.Envelope
	deadline time.Time
}

// listen is the single listener goroutine. All dispatch happens here, so
// handlers for one session never run concurrently.
func (m *Manager) listen(ctx context.Context, ch <-chan kv.Notification, done chan<- struct{}) {
	defer close(done)

	pending := make(map[envelope.Domain]*pendingUpdate)
	var order []envelope.Domain
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	rearm := func() {
		timer.Stop()
		if len(order) == 0 {
			return
		}
		earliest := pending[order[0]].deadline
		for _, d := range order[1:] {
			if dl := pending[d].deadline; dl.Before(earliest) {
				earliest = dl
			}
		}
		timer.Reset(time.Until(earliest))
	}

	flush := func(now time.Time) {
		remaining := order[:0]
		var due []envelope.Envelope
		for _, d := range order {
			p := pending[d]
			if now.Before(p.deadline) {
				remaining = append(remaining, d)
				continue
			}
			due = append(due, p.env)
			delete(pending, d)
		}
		order = remaining
		for _, env := range due {
			m.dispatch(env)
		}
	}

	backoff := minBackoff
	for {
		select {
		case <-ctx.Done():
			return

		case <-timer.C:
			flush(time.Now())
			rearm()

		case n, ok := <-ch:
			if !ok {
				ch = m.rewatch(ctx, &backoff)
				if ch == nil {
					return
				}
				continue
			}
			backoff = minBackoff

			env, ok := m.accept(n)
			if !ok {
				continue
			}
			if m.debounce <= 0 || !m.isSnapshot(env.Domain) {
				m.dispatch(env)
				continue
			}
			if p, exists := pending[env.Domain]; exists {
				m.stats.coalesced.Add(1)
				p.env = env
				p.deadline = time.Now().Add(m.debounce)
			} else {
				pending[env.Domain] = &pendingUpdate{env: env, deadline: time.Now().Add(m.debounce)}
				order = append(order, env.Domain)
			}
			rearm()
		}
	}
}

// rewatch re-attaches to the store after the notification channel closed.
// It returns nil once ctx is done.
func (m *Manager) rewatch(ctx context.Context, backoff *time.Duration) <-chan kv.Notification {
	for {
		m.logger.WithField("backoff", *backoff).Warn("Store notifications stopped, re-watching")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(*backoff):
		}
		*backoff *= 2
		if *backoff > maxBackoff {
			*backoff = maxBackoff
		}

		ch, err := m.store.Watch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.logger.WithError(err).Warn("Re-watch failed")
			continue
		}
		m.stats.rewatches.Add(1)
		return ch
	}
}

func (m *Manager) isSnapshot(domain envelope.Domain) bool {
	desc, ok := m.registry.Lookup(domain)
	return ok && desc.Kind == envelope.KindSnapshot
}

// accept turns a notification into a dispatchable envelope, dropping foreign
// namespaces, unrelated keys, malformed values, self-echoes and duplicates.
func (m *Manager) accept(n kv.Notification) (envelope.Envelope, bool) {
	if n.Namespace != m.namespace {
		m.stats.ignored.Add(1)
		return envelope.Envelope{}, false
	}

	logger := m.logger.WithFields(logrus.Fields{
		"key":    n.Key,
		"origin": n.Origin,
	})

	var env envelope.Envelope
	if n.Key == envelope.EventKey {
		decoded, err := envelope.Decode(n.Value)
		if err != nil {
			m.stats.decodeErrors.Add(1)
			logger.WithError(err).Warn("Dropping malformed sync event")
			return envelope.Envelope{}, false
		}
		env = decoded
		if env.Origin == "" {
			env.Origin = n.Origin
		}
	} else {
		desc, ok := m.registry.ForKey(n.Key)
		if !ok {
			m.stats.ignored.Add(1)
			return envelope.Envelope{}, false
		}
		data, err := envelope.DecodeValue(n.Value)
		if err != nil {
			m.stats.decodeErrors.Add(1)
			logger.WithError(err).Warn("Dropping malformed snapshot")
			return envelope.Envelope{}, false
		}
		env = envelope.Envelope{
			Domain:    desc.Domain,
			Action:    envelope.ActionUpdate,
			Data:      data,
			Origin:    n.Origin,
			Timestamp: m.now().UnixMilli(),
		}
	}

	if env.Origin != "" && env.Origin == m.participant.ID {
		m.stats.selfEcho.Add(1)
		return envelope.Envelope{}, false
	}
	if env.SyncID != "" && !m.seen.add(env.SyncID) {
		m.stats.duplicate.Add(1)
		logger.WithField("sync_id", env.SyncID).Debug("Dropping duplicate sync event")
		return envelope.Envelope{}, false
	}

	logger.WithFields(logrus.Fields{
		"domain": env.Domain,
		"action": env.Action,
	}).Debug("Remote change")
	return env, true
}

// recentIDs remembers the last N sync ids. Only the listener goroutine uses it.
type recentIDs struct {
	ids  []string
	set  map[string]struct{}
	next int
}

func newRecentIDs(capacity int) *recentIDs {
	return &recentIDs{
		ids: make([]string, capacity),
		set: make(map[string]struct{}, capacity),
	}
}

// add records id and reports whether it was new.
func (r *recentIDs) add(id string) bool {
	if _, ok := r.set[id]; ok {
		return false
	}
	if old := r.ids[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ids[r.next] = id
	r.set[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ids)
	return true
}
