package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/port"
)

var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Memory is an in-process string store shared by the tabs that hold it.
// Quota bounds the total size of keys and values in bytes, zero means unbounded.
// Watchers are notified asynchronously, each on its own goroutine, in write order.
type Memory struct {
	mu       sync.RWMutex
	data     map[string]string
	quota    int
	used     int
	watchers map[uint64]*watcher
	nextID   uint64
}

var _ port.Backend = (*Memory)(nil)

func NewMemory(quota int) *Memory {
	return &Memory{
		data:     make(map[string]string),
		quota:    quota,
		watchers: make(map[uint64]*watcher),
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("key is empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value, origin string) error {
	if key == "" {
		return fmt.Errorf("key is empty")
	}

	m.mu.Lock()
	used := m.used + len(key) + len(value)
	if old, ok := m.data[key]; ok {
		used -= len(key) + len(old)
	}
	if m.quota > 0 && used > m.quota {
		m.mu.Unlock()
		return fmt.Errorf("key[%s] needs %d of %d bytes: %w", key, used, m.quota, ErrQuotaExceeded)
	}
	m.data[key] = value
	m.used = used
	watchers := m.snapshotWatchers()
	m.mu.Unlock()

	m.dispatch(watchers, domain.StorageEvent{Key: key, Value: value, Origin: origin})
	return nil
}

func (m *Memory) Delete(_ context.Context, key, origin string) error {
	if key == "" {
		return fmt.Errorf("key is empty")
	}

	m.mu.Lock()
	old, ok := m.data[key]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.data, key)
	m.used -= len(key) + len(old)
	watchers := m.snapshotWatchers()
	m.mu.Unlock()

	m.dispatch(watchers, domain.StorageEvent{Key: key, Deleted: true, Origin: origin})
	return nil
}

// Corrupt stores a raw value without notifying anyone, the way a value written
// by another program or truncated on disk would look.
func (m *Memory) Corrupt(key, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.data[key]; ok {
		m.used -= len(key) + len(old)
	}
	m.data[key] = raw
	m.used += len(key) + len(raw)
}

func (m *Memory) Watch(_ context.Context, fn func(domain.StorageEvent)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("fn is nil")
	}

	w := &watcher{
		fn:      fn,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = w
	m.mu.Unlock()

	go w.run()

	stop := func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()

		close(w.done)
		<-w.stopped
	}

	return sync.OnceFunc(stop), nil
}

func (m *Memory) snapshotWatchers() []*watcher {
	out := make([]*watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		out = append(out, w)
	}
	return out
}

func (m *Memory) dispatch(watchers []*watcher, e domain.StorageEvent) {
	for _, w := range watchers {
		w.push(e)
	}
}

// watcher queues events without bound so a writer never blocks on a slow reader.
type watcher struct {
	fn func(domain.StorageEvent)

	mu    sync.Mutex
	queue []domain.StorageEvent

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

func (w *watcher) push(e domain.StorageEvent) {
	w.mu.Lock()
	w.queue = append(w.queue, e)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) run() {
	defer close(w.stopped)

	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}

		for {
			w.mu.Lock()
			if len(w.queue) == 0 {
				w.mu.Unlock()
				break
			}
			e := w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()

			select {
			case <-w.done:
				return
			default:
			}

			w.fn(e)
		}
	}
}
