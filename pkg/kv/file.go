package kv

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/crownest/logging"
)

// DefaultFileDebounce coalesces the bursts of events one atomic rewrite produces.
const DefaultFileDebounce = 50 * time.Millisecond

// File is a store shared by processes on one machine through a yaml file.
// Local writes notify local watchers directly; writes by other processes
// are picked up with fsnotify and reported per changed key.
type File struct {
	path     string
	origin   string
	debounce time.Duration

	mu    sync.Mutex
	cache Space

	hub     *hub
	watchMu sync.Mutex
	fsw     *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *logrus.Entry
}

// NewFile opens the store at path on behalf of origin.
func NewFile(path, origin string, debounce time.Duration) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("file store requires a path")
	}
	if debounce <= 0 {
		debounce = DefaultFileDebounce
	}
	space, err := loadLocked(path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &File{
		path:     path,
		origin:   origin,
		debounce: debounce,
		cache:    space,
		hub:      newHub(),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logging.NewLogger("kv-file"),
	}, nil
}

// Path returns the backing file.
func (f *File) Path() string {
	return f.path
}

func (f *File) Get(_ context.Context, namespace, key string) (any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	space, err := loadLocked(f.path)
	if err != nil {
		return nil, false, err
	}
	e, ok := space.Lookup(namespace, key)
	if !ok {
		return nil, false, nil
	}
	return e.Value, true, nil
}

func (f *File) Set(ctx context.Context, namespace, key string, value any) error {
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

	f.mu.Lock()
	defer f.mu.Unlock()

	// Other processes may write between our read and our rename.
	lock, err := acquireLock(f.path, true)
	if err != nil {
		return err
	}
	defer lock.release()

	// Re-read so writes by other processes are kept.
	space, err := LoadSpace(f.path)
	if err != nil {
		return err
	}
	f.publishChanges(f.cache, space)
	space.put(namespace, key, Entry{Value: raw, Origin: f.origin, UpdatedAt: time.Now().Round(0)})
	if err := SaveSpace(f.path, space); err != nil {
		return err
	}
	f.cache = space

	f.hub.publish(Notification{
		Namespace: namespace,
		Key:       key,
		Value:     shaped(ShapeWrapped, raw),
		Origin:    f.origin,
	})
	return nil
}

// Watch subscribes to local writes and to changes made by other processes.
func (f *File) Watch(ctx context.Context) (<-chan Notification, error) {
	if err := f.startWatcher(); err != nil {
		return nil, err
	}
	wctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(f.ctx, cancel)
	ch, ok := f.hub.watch(wctx)
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

func (f *File) startWatcher() error {
	f.watchMu.Lock()
	defer f.watchMu.Unlock()
	if f.fsw != nil {
		return nil
	}
	if f.ctx.Err() != nil {
		return fmt.Errorf("store is closed")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory: atomic rewrites replace the file's inode.
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	f.fsw = w
	go f.run(w)
	return nil
}

func (f *File) run(w *fsnotify.Watcher) {
	defer w.Close()
	base := filepath.Base(f.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			f.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if timer == nil {
				timer = time.NewTimer(f.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(f.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			f.reload()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			f.logger.Errorf("Watcher error: %v", err)
		case <-f.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// reload diffs the file against the cache and notifies changed keys.
func (f *File) reload() {
	f.mu.Lock()
	defer f.mu.Unlock()
	space, err := loadLocked(f.path)
	if err != nil {
		f.logger.WithError(err).Warn("Failed to reload store file")
		return
	}
	f.publishChanges(f.cache, space)
	f.cache = space
}

// loadLocked reads the store file under a shared lock.
func loadLocked(path string) (Space, error) {
	lock, err := acquireLock(path, false)
	if err != nil {
		return nil, err
	}
	defer lock.release()
	return LoadSpace(path)
}

func (f *File) publishChanges(prev, next Space) {
	for ns, keys := range next {
		for k, e := range keys {
			old, ok := prev.Lookup(ns, k)
			if ok && bytes.Equal(old.Value, e.Value) && old.UpdatedAt.Equal(e.UpdatedAt) {
				continue
			}
			f.logger.WithFields(logrus.Fields{"namespace": ns, "key": k, "origin": e.Origin}).
				Debug("External change")
			f.hub.publish(Notification{
				Namespace: ns,
				Key:       k,
				Value:     shaped(ShapeWrapped, e.Value),
				Origin:    e.Origin,
				Meta:      map[string]string{"source": "file"},
			})
		}
	}
}

func (f *File) Close() error {
	f.hub.close()
	f.cancel()
	return nil
}

var _ Store = (*File)(nil)
