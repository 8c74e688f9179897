package syncmgr

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/crownest/pkg/envelope"
)

// Handler receives dispatched envelopes on the listener goroutine.
type Handler func(env envelope.Envelope)

// SubscriptionID identifies one Subscribe call.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Subscribe registers handler for domain, or for every domain with
// envelope.DomainAll. Each call adds a registration, so a handler
// subscribed twice runs twice per envelope.
func (m *Manager) Subscribe(domain envelope.Domain, handler Handler) SubscriptionID {
	domain = m.registry.Canonical(domain)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners[domain] = append(m.listeners[domain], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes the registration id from domain. It reports whether
// anything was removed.
func (m *Manager) Unsubscribe(domain envelope.Domain, id SubscriptionID) bool {
	domain = m.registry.Canonical(domain)
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.listeners[domain]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		next := make([]subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(m.listeners, domain)
		} else {
			m.listeners[domain] = next
		}
		return true
	}
	return false
}

// SetEventHandler installs the single handler that sees envelopes of domain
// before any subscriber. A second call replaces the first.
func (m *Manager) SetEventHandler(domain envelope.Domain, handler Handler) {
	domain = m.registry.Canonical(domain)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventHandlers[domain] = handler
}

func (m *Manager) ClearEventHandler(domain envelope.Domain) {
	domain = m.registry.Canonical(domain)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.eventHandlers, domain)
}

func (m *Manager) ClearEventHandlers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventHandlers = make(map[envelope.Domain]Handler)
}

// ListenerCount reports the registrations for domain, not counting "all".
func (m *Manager) ListenerCount(domain envelope.Domain) int {
	domain = m.registry.Canonical(domain)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners[domain])
}

// LastSeen returns the last envelope dispatched for domain.
func (m *Manager) LastSeen(domain envelope.Domain) (envelope.Envelope, bool) {
	domain = m.registry.Canonical(domain)
	m.mu.RLock()
	defer m.mu.RUnlock()
	env, ok := m.lastSeen[domain]
	return env, ok
}

// dispatch runs the event handler, the domain subscribers in registration
// order, then the "all" subscribers. Handlers registered during dispatch
// see the next envelope.
func (m *Manager) dispatch(env envelope.Envelope) {
	env.Domain = m.registry.Canonical(env.Domain)

	m.mu.Lock()
	m.lastSeen[env.Domain] = env
	eventHandler := m.eventHandlers[env.Domain]
	domainSubs := m.listeners[env.Domain]
	allSubs := m.listeners[envelope.DomainAll]
	m.mu.Unlock()

	m.stats.dispatched.Add(1)

	if eventHandler != nil {
		m.invoke(env, eventHandler)
	}
	for _, s := range domainSubs {
		m.invoke(env, s.handler)
	}
	for _, s := range allSubs {
		m.invoke(env, s.handler)
	}
}

func (m *Manager) invoke(env envelope.Envelope, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			m.stats.handlerPanics.Add(1)
			m.logger.WithFields(logrus.Fields{
				"domain": env.Domain,
				"action": env.Action,
				"panic":  fmt.Sprint(r),
			}).Errorf("Sync handler panicked\n%s", debug.Stack())
		}
	}()
	h(env)
}
