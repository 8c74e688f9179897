package kv

import (
	"context"
	"sync"
)

// hub fans notifications out to watchers. Each watcher owns an unbounded
// queue so a slow reader never loses or blocks notifications.
type hub struct {
	mu       sync.Mutex
	watchers map[*watcher]struct{}
	closed   bool
}

type watcher struct {
	in   chan Notification
	out  chan Notification
	done chan struct{}
}

func newHub() *hub {
	return &hub{watchers: make(map[*watcher]struct{})}
}

// watch registers a watcher that lives until ctx is done or the hub closes.
func (h *hub) watch(ctx context.Context) (<-chan Notification, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	w := &watcher{
		in:   make(chan Notification, 64),
		out:  make(chan Notification),
		done: make(chan struct{}),
	}
	h.watchers[w] = struct{}{}
	go h.pump(ctx, w)
	return w.out, true
}

func (h *hub) pump(ctx context.Context, w *watcher) {
	var queue []Notification
	defer func() {
		close(w.done)
		h.mu.Lock()
		delete(h.watchers, w)
		h.mu.Unlock()
		close(w.out)
	}()
	for {
		var out chan Notification
		var next Notification
		if len(queue) > 0 {
			out = w.out
			next = queue[0]
		}
		select {
		case n, ok := <-w.in:
			if !ok {
				// Drain what is queued before closing.
				for _, q := range queue {
					select {
					case w.out <- q:
					case <-ctx.Done():
						return
					}
				}
				return
			}
			queue = append(queue, n)
		case out <- next:
			queue[0] = Notification{}
			queue = queue[1:]
		case <-ctx.Done():
			return
		}
	}
}

// publish queues n on every watcher. Callers serialize publishes so all
// watchers observe writes in the same order.
func (h *hub) publish(n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for w := range h.watchers {
		select {
		case w.in <- n:
		case <-w.done:
		}
	}
}

// close ends every watcher after its queue drains.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for w := range h.watchers {
		close(w.in)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}
