package wishlist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/event"
	"github.com/nikolayk812/storefront-state/internal/storage"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingID = errors.New("item id is empty")
	ErrNotFound  = errors.New("item is not in the wishlist")
)

// CartAdder is the part of the cart MoveToCart needs.
type CartAdder interface {
	AddItem(ctx context.Context, line domain.CartLine) error
}

// Container is a set of saved items keyed by product id.
type Container struct {
	store *storage.Store
	bus   *event.Bus
	log   logrus.FieldLogger
	now   func() time.Time

	mu    sync.RWMutex
	items []domain.WishlistItem

	unsubscribe []func()
}

type Option func(*Container)

func WithClock(now func() time.Time) Option {
	return func(c *Container) { c.now = now }
}

func New(ctx context.Context, store *storage.Store, bus *event.Bus, log logrus.FieldLogger, opts ...Option) *Container {
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Container{
		store: store,
		bus:   bus,
		log:   log.WithField("component", "wishlist"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.items = c.load(ctx)

	c.unsubscribe = append(c.unsubscribe, store.Subscribe(func(e domain.StorageEvent) {
		if e.Key == storage.KeyWishlist {
			c.Refresh(context.Background())
		}
	}))
	if bus != nil {
		c.unsubscribe = append(c.unsubscribe, bus.Subscribe(func(event.Event) {
			c.Refresh(context.Background())
		}, event.KindLogin, event.KindLogout))
	}

	return c
}

func (c *Container) Close() {
	for _, fn := range c.unsubscribe {
		fn()
	}
}

// AddItem saves item unless its id is already present, in which case it
// returns false and changes nothing.
func (c *Container) AddItem(ctx context.Context, item domain.WishlistItem) (bool, error) {
	if item.ID == "" {
		return false, ErrMissingID
	}

	c.mu.Lock()
	if slices.ContainsFunc(c.items, byID(item.ID)) {
		c.mu.Unlock()
		return false, nil
	}

	item.AddedAt = c.now()
	next := append(slices.Clone(c.items), item)
	payload, err := c.commit(ctx, next)
	c.mu.Unlock()
	if err != nil {
		return false, err
	}

	c.publish(payload)
	return true, nil
}

func (c *Container) RemoveItem(ctx context.Context, id string) error {
	c.mu.Lock()
	next := slices.DeleteFunc(slices.Clone(c.items), byID(id))
	payload, err := c.commit(ctx, next)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.publish(payload)
	return nil
}

// Toggle removes item when present and adds it otherwise. It reports whether
// the item is saved afterwards.
func (c *Container) Toggle(ctx context.Context, item domain.WishlistItem) (bool, error) {
	if c.Contains(item.ID) {
		if err := c.RemoveItem(ctx, item.ID); err != nil {
			return true, err
		}
		return false, nil
	}

	if _, err := c.AddItem(ctx, item); err != nil {
		return false, err
	}
	return true, nil
}

// MoveToCart adds one unit of the saved item to the cart and then drops it
// from the wishlist. The wishlist is untouched when the cart rejects the item.
func (c *Container) MoveToCart(ctx context.Context, id string, cart CartAdder) error {
	c.mu.RLock()
	i := slices.IndexFunc(c.items, byID(id))
	var item domain.WishlistItem
	if i >= 0 {
		item = c.items[i]
	}
	c.mu.RUnlock()

	if i < 0 {
		return ErrNotFound
	}

	if err := cart.AddItem(ctx, item.CartLine(1)); err != nil {
		return fmt.Errorf("cart.AddItem: %w", err)
	}

	return c.RemoveItem(ctx, id)
}

func (c *Container) Clear(ctx context.Context) error {
	c.mu.Lock()
	payload, err := c.commit(ctx, []domain.WishlistItem{})
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.publish(payload)
	return nil
}

func (c *Container) Refresh(ctx context.Context) {
	c.mu.Lock()
	c.items = c.load(ctx)
	payload := c.payload()
	c.mu.Unlock()

	c.publish(payload)
}

func (c *Container) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.ContainsFunc(c.items, byID(id))
}

func (c *Container) Items() []domain.WishlistItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.items)
}

func (c *Container) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// commit persists next and adopts it. Callers hold mu.
func (c *Container) commit(ctx context.Context, next []domain.WishlistItem) (*event.WishlistPayload, error) {
	if next == nil {
		next = []domain.WishlistItem{}
	}

	if err := c.store.Set(ctx, storage.KeyWishlist, next); err != nil {
		return nil, fmt.Errorf("store.Set: %w", err)
	}

	c.items = next
	return c.payload(), nil
}

func (c *Container) load(ctx context.Context) []domain.WishlistItem {
	persisted, ok := storage.Get[[]domain.WishlistItem](ctx, c.store, storage.KeyWishlist)
	if !ok {
		return []domain.WishlistItem{}
	}

	items := make([]domain.WishlistItem, 0, len(persisted))
	for _, item := range persisted {
		if item.ID == "" || slices.ContainsFunc(items, byID(item.ID)) {
			c.log.WithField("product_id", item.ID).Warn("dropping invalid persisted item")
			continue
		}
		items = append(items, item)
	}

	return items
}

func (c *Container) payload() *event.WishlistPayload {
	return &event.WishlistPayload{
		Items: slices.Clone(c.items),
		Count: len(c.items),
	}
}

func (c *Container) publish(p *event.WishlistPayload) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(event.Event{Kind: event.KindWishlistChanged, Wishlist: p})
}

func byID(id string) func(domain.WishlistItem) bool {
	return func(w domain.WishlistItem) bool { return w.ID == id }
}
