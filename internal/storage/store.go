// Package storage is the only way containers reach persisted state. It wraps a
// raw string backend with JSON encoding, contains every read failure and turns
// backend change notifications into per-tab subscriptions.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/port"
	"github.com/sirupsen/logrus"
)

const (
	KeySession  = "session"
	KeyToken    = "token"
	KeyCart     = "cart"
	KeyWishlist = "wishlist"
)

// Store is one tab's view of the shared backend.
type Store struct {
	backend port.Backend
	origin  string
	log     logrus.FieldLogger

	mu     sync.RWMutex
	subs   map[uint64]func(domain.StorageEvent)
	nextID uint64

	stopWatch func()
}

func Open(ctx context.Context, backend port.Backend, log logrus.FieldLogger) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Store{
		backend: backend,
		origin:  uuid.NewString(),
		subs:    make(map[uint64]func(domain.StorageEvent)),
	}
	s.log = log.WithFields(logrus.Fields{"component": "storage", "tab": s.origin})

	stop, err := backend.Watch(ctx, s.deliver)
	if err != nil {
		return nil, fmt.Errorf("backend.Watch: %w", err)
	}
	s.stopWatch = stop

	return s, nil
}

// Origin identifies this tab in change notifications.
func (s *Store) Origin() string {
	return s.origin
}

// Get reads key and decodes it into T. Absent, unreadable and corrupt values
// all come back as (zero, false); a corrupt value is also deleted.
func Get[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var zero T

	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("read failed, treating as absent")
		return zero, false
	}
	if !ok {
		return zero, false
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("corrupt value removed")
		s.Remove(ctx, key)
		return zero, false
	}

	return v, true
}

// Set encodes v and writes it. On error the previously stored value is kept.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err := s.backend.Set(ctx, key, string(b), s.origin); err != nil {
		s.log.WithError(err).WithField("key", key).Error("write failed")
		return fmt.Errorf("backend.Set: %w", err)
	}

	return nil
}

func (s *Store) Remove(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key, s.origin); err != nil {
		s.log.WithError(err).WithField("key", key).Error("delete failed")
	}
}

// Subscribe registers fn for changes made by other tabs. The returned function
// unsubscribes and is safe to call more than once.
func (s *Store) Subscribe(fn func(domain.StorageEvent)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return sync.OnceFunc(func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	})
}

// Close stops watching the backend. Subscribers receive nothing afterwards.
func (s *Store) Close() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
}

func (s *Store) deliver(e domain.StorageEvent) {
	if e.Origin == s.origin {
		return
	}

	s.mu.RLock()
	fns := make([]func(domain.StorageEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
