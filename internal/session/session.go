package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/event"
	"github.com/nikolayk812/storefront-state/internal/port"
	"github.com/nikolayk812/storefront-state/internal/storage"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingToken     = errors.New("credentials carry no token")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Container owns the session and token keys. It is either anonymous
// (current == nil) or authenticated with a session that has a token.
type Container struct {
	store *storage.Store
	bus   *event.Bus
	log   logrus.FieldLogger

	mu      sync.RWMutex
	current *domain.Session

	unsubscribe func()
}

// New restores the persisted session. A malformed or tokenless value leaves the
// container anonymous and clears both keys.
func New(ctx context.Context, store *storage.Store, bus *event.Bus, log logrus.FieldLogger) *Container {
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Container{
		store: store,
		bus:   bus,
		log:   log.WithField("component", "session"),
	}

	s, ok := storage.Get[domain.Session](ctx, store, storage.KeySession)
	switch {
	case !ok:
		store.Remove(ctx, storage.KeyToken)
	case s.Token == "":
		c.log.Warn("persisted session has no token, clearing")
		c.clearPersisted(ctx)
	default:
		c.current = &s
	}

	c.unsubscribe = store.Subscribe(c.onStorageEvent)

	return c
}

// Close stops following other tabs.
func (c *Container) Close() {
	c.unsubscribe()
}

func (c *Container) Current() (domain.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return domain.Session{}, false
	}
	return clone(*c.current), true
}

func (c *Container) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current != nil && c.current.Token != ""
}

func (c *Container) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return ""
	}
	return c.current.Token
}

func (c *Container) Login(ctx context.Context, creds domain.Credentials) error {
	if strings.TrimSpace(creds.Token) == "" {
		return ErrMissingToken
	}

	s := Normalize(creds)

	c.mu.Lock()
	prev := c.current

	if err := c.store.Set(ctx, storage.KeySession, s); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("store.Set session: %w", err)
	}
	if err := c.store.Set(ctx, storage.KeyToken, s.Token); err != nil {
		c.restore(ctx, prev)
		c.mu.Unlock()
		return fmt.Errorf("store.Set token: %w", err)
	}

	c.current = &s
	c.mu.Unlock()

	c.log.WithField("user_id", s.ID).Info("logged in")
	c.publish(event.KindLogin, &s)

	return nil
}

// SignIn authenticates against the backend and adopts the returned session.
func (c *Container) SignIn(ctx context.Context, auth port.AuthAPI, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	creds, err := auth.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("auth.Login: %w", err)
	}

	return c.Login(ctx, creds)
}

// SignUp registers a new account and logs it in.
func (c *Container) SignUp(ctx context.Context, auth port.AuthAPI, req port.RegisterRequest) error {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return fmt.Errorf("email and password are required")
	}

	creds, err := auth.Register(ctx, req)
	if err != nil {
		return fmt.Errorf("auth.Register: %w", err)
	}

	return c.Login(ctx, creds)
}

func (c *Container) Logout(ctx context.Context) {
	c.mu.Lock()
	wasAuthenticated := c.current != nil
	c.clearPersisted(ctx)
	c.current = nil
	c.mu.Unlock()

	if wasAuthenticated {
		c.log.Info("logged out")
		c.publish(event.KindLogout, nil)
	}
}

func (c *Container) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}

	merged := clone(*c.current)
	if patch.Name != nil {
		merged.Name = *patch.Name
	}
	if patch.Email != nil {
		merged.Email = *patch.Email
	}
	if len(patch.Extra) > 0 {
		if merged.Extra == nil {
			merged.Extra = make(map[string]any, len(patch.Extra))
		}
		maps.Copy(merged.Extra, patch.Extra)
	}

	if err := c.store.Set(ctx, storage.KeySession, merged); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("store.Set session: %w", err)
	}

	c.current = &merged
	c.mu.Unlock()

	c.publish(event.KindProfileUpdated, &merged)
	return nil
}

// Normalize turns credentials into the canonical session shape: role defaults
// to user, a missing name comes from the email local part and a missing id is generated.
func Normalize(creds domain.Credentials) domain.Session {
	s := domain.Session{
		ID:    creds.ID,
		Name:  strings.TrimSpace(creds.Name),
		Email: strings.TrimSpace(creds.Email),
		Role:  creds.Role,
		Token: creds.Token,
	}
	if len(creds.Extra) > 0 {
		s.Extra = maps.Clone(creds.Extra)
	}

	if s.Role != domain.RoleAdmin {
		s.Role = domain.RoleUser
	}
	if s.Name == "" {
		s.Name, _, _ = strings.Cut(s.Email, "@")
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	return s
}

// onStorageEvent makes the persisted session the authority across tabs.
func (c *Container) onStorageEvent(e domain.StorageEvent) {
	if e.Key != storage.KeySession {
		return
	}

	ctx := context.Background()

	c.mu.Lock()
	s, ok := storage.Get[domain.Session](ctx, c.store, storage.KeySession)
	valid := ok && s.Token != ""

	switch {
	case !valid && c.current != nil:
		c.current = nil
		c.mu.Unlock()
		c.log.Info("logged out in another tab")
		c.publish(event.KindLogout, nil)

	case valid && (c.current == nil || !reflect.DeepEqual(*c.current, s)):
		c.current = &s
		c.mu.Unlock()
		c.log.WithField("user_id", s.ID).Info("session changed in another tab")
		c.publish(event.KindLogin, &s)

	default:
		c.mu.Unlock()
	}
}

func (c *Container) clearPersisted(ctx context.Context) {
	c.store.Remove(ctx, storage.KeySession)
	c.store.Remove(ctx, storage.KeyToken)
}

func (c *Container) restore(ctx context.Context, prev *domain.Session) {
	if prev == nil {
		c.store.Remove(ctx, storage.KeySession)
		return
	}
	if err := c.store.Set(ctx, storage.KeySession, *prev); err != nil {
		c.log.WithError(err).Error("restoring previous session failed")
	}
}

func (c *Container) publish(kind event.Kind, s *domain.Session) {
	if c.bus == nil {
		return
	}

	e := event.Event{Kind: kind}
	if s != nil {
		cp := clone(*s)
		e.Session = &cp
	}
	c.bus.Publish(e)
}

func clone(s domain.Session) domain.Session {
	s.Extra = maps.Clone(s.Extra)
	return s
}
