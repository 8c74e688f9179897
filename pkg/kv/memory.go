package kv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/crownest/logging"
)

// Memory is an in-process replicated space. Each participant talks to it
// through its own view (see Participant); every write is delivered to every
// watcher of every view.
type Memory struct {
	mu       sync.Mutex
	space    Space
	hub      *hub
	shape    Shape
	path     string
	writeErr error
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *logrus.Entry
}

// MemoryOption configures a Memory.
type MemoryOption func(*Memory)

// WithShape sets the shape notification values are delivered in.
func WithShape(shape Shape) MemoryOption {
	return func(m *Memory) { m.shape = shape }
}

// WithPersistence loads the space from path and rewrites it after every write.
func WithPersistence(path string) MemoryOption {
	return func(m *Memory) { m.path = path }
}

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) (*Memory, error) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Memory{
		space:  make(Space),
		hub:    newHub(),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		logger: logging.NewLogger("kv-memory"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.path != "" {
		space, err := LoadSpace(m.path)
		if err != nil {
			cancel()
			return nil, err
		}
		m.space = space
	}
	return m, nil
}

// Participant returns the view a single participant reads and writes through.
func (m *Memory) Participant(id string) Store {
	ctx, cancel := context.WithCancel(m.ctx)
	return &memoryView{mem: m, origin: id, ctx: ctx, cancel: cancel}
}

// SetWriteError makes every following write fail with err. Pass nil to
// restore normal writes.
func (m *Memory) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Lookup returns the stored entry without shaping.
func (m *Memory) Lookup(namespace, key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.space.Lookup(namespace, key)
}

// Space returns a copy of everything stored.
func (m *Memory) Space() Space {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.space.Clone()
}

// Put stores value on behalf of origin and notifies every watcher.
func (m *Memory) Put(ctx context.Context, origin, namespace, key string, value any) error {
	if err := validName(namespace, key); err != nil {
		return err
	}
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	entry := Entry{Value: raw, Origin: origin, UpdatedAt: m.now()}
	if m.path != "" {
		next := m.space.Clone()
		next.put(namespace, key, entry)
		if err := SaveSpace(m.path, next); err != nil {
			return err
		}
		m.space = next
	} else {
		m.space.put(namespace, key, entry)
	}

	m.logger.WithFields(logrus.Fields{
		"namespace": namespace,
		"key":       key,
		"origin":    origin,
		"bytes":     len(raw),
	}).Debug("Stored value")

	m.hub.publish(Notification{
		Namespace: namespace,
		Key:       key,
		Value:     shaped(m.shape, raw),
		Origin:    origin,
	})
	return nil
}

// Get returns the stored JSON for namespace/key.
func (m *Memory) Get(_ context.Context, namespace, key string) (any, bool, error) {
	e, ok := m.Lookup(namespace, key)
	if !ok {
		return nil, false, nil
	}
	return e.Value, true, nil
}

// Watch subscribes to every write until ctx is done or the space closes.
func (m *Memory) Watch(ctx context.Context) (<-chan Notification, error) {
	wctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.ctx, cancel)
	ch, ok := m.hub.watch(wctx)
	if !ok {
		stop()
		cancel()
		return nil, fmt.Errorf("store is closed")
	}
	go func() {
		<-wctx.Done()
		stop()
	}()
	return ch, nil
}

// Watchers reports how many watchers are attached.
func (m *Memory) Watchers() int {
	return m.hub.count()
}

// Close ends every watcher. Writes after Close still succeed but notify nobody.
func (m *Memory) Close() error {
	m.hub.close()
	m.cancel()
	return nil
}

type memoryView struct {
	mem    *Memory
	origin string
	ctx    context.Context
	cancel context.CancelFunc
}

func (v *memoryView) Get(ctx context.Context, namespace, key string) (any, bool, error) {
	return v.mem.Get(ctx, namespace, key)
}

func (v *memoryView) Set(ctx context.Context, namespace, key string, value any) error {
	if v.ctx.Err() != nil {
		return fmt.Errorf("store view for %s is closed", v.origin)
	}
	return v.mem.Put(ctx, v.origin, namespace, key, value)
}

func (v *memoryView) Watch(ctx context.Context) (<-chan Notification, error) {
	if v.ctx.Err() != nil {
		return nil, fmt.Errorf("store view for %s is closed", v.origin)
	}
	wctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(v.ctx, cancel)
	ch, err := v.mem.Watch(wctx)
	if err != nil {
		stop()
		cancel()
		return nil, err
	}
	go func() {
		<-wctx.Done()
		stop()
	}()
	return ch, nil
}

func (v *memoryView) Close() error {
	v.cancel()
	return nil
}

var _ Store = (*memoryView)(nil)
