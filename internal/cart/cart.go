package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/event"
	"github.com/nikolayk812/storefront-state/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingID     = errors.New("item id is empty")
	ErrNegativePrice = errors.New("item price is negative")
)

// Container holds the cart lines of one tab. Lines are unique by product id
// and always have a quantity of at least one.
type Container struct {
	store *storage.Store
	bus   *event.Bus
	log   logrus.FieldLogger
	now   func() time.Time
	newID func() string

	mu    sync.RWMutex
	lines []domain.CartLine
	count int
	total decimal.Decimal

	unsubscribe []func()
}

type Option func(*Container)

func WithClock(now func() time.Time) Option {
	return func(c *Container) { c.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Container) { c.newID = newID }
}

// New loads the persisted cart and starts following other tabs and session
// transitions, both of which trigger a Refresh.
func New(ctx context.Context, store *storage.Store, bus *event.Bus, log logrus.FieldLogger, opts ...Option) *Container {
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Container{
		store: store,
		bus:   bus,
		log:   log.WithField("component", "cart"),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.lines = c.load(ctx)
	c.recompute()

	c.unsubscribe = append(c.unsubscribe, store.Subscribe(func(e domain.StorageEvent) {
		if e.Key == storage.KeyCart {
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

// AddItem appends a new line or, when the product is already in the cart,
// increases its quantity. A quantity below one counts as one.
func (c *Container) AddItem(ctx context.Context, item domain.CartLine) error {
	if item.ID == "" {
		return ErrMissingID
	}
	if item.Price.IsNegative() {
		return ErrNegativePrice
	}

	qty := item.Quantity
	if qty < 1 {
		qty = 1
	}

	return c.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		if i := slices.IndexFunc(lines, byID(item.ID)); i >= 0 {
			lines[i].Quantity += qty
			return lines
		}

		item.CartID = c.newID()
		item.AddedAt = c.now()
		item.Quantity = qty
		return append(lines, item)
	})
}

// RemoveItem drops the line for id. Removing an absent id succeeds.
func (c *Container) RemoveItem(ctx context.Context, id string) error {
	return c.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		return slices.DeleteFunc(lines, byID(id))
	})
}

// SetQuantity overwrites the quantity of the line for id; below one it removes the line.
func (c *Container) SetQuantity(ctx context.Context, id string, qty int) error {
	if qty < 1 {
		return c.RemoveItem(ctx, id)
	}

	return c.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		if i := slices.IndexFunc(lines, byID(id)); i >= 0 {
			lines[i].Quantity = qty
		}
		return lines
	})
}

func (c *Container) Clear(ctx context.Context) error {
	return c.mutate(ctx, func([]domain.CartLine) []domain.CartLine {
		return nil
	})
}

// Refresh re-reads the persisted cart, dropping lines that break the cart
// invariants, and announces the result.
func (c *Container) Refresh(ctx context.Context) {
	c.mu.Lock()
	c.lines = c.load(ctx)
	c.recompute()
	payload := c.payload()
	c.mu.Unlock()

	c.publish(payload)
}

func (c *Container) Lines() []domain.CartLine {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.lines)
}

// Count is the number of lines, not the number of units.
func (c *Container) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.count
}

func (c *Container) Total() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.total
}

func (c *Container) Contains(id string) bool {
	return c.Quantity(id) > 0
}

func (c *Container) Quantity(id string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := slices.IndexFunc(c.lines, byID(id)); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

// mutate applies fn to a copy of the lines and commits the result only when
// it was persisted.
func (c *Container) mutate(ctx context.Context, fn func([]domain.CartLine) []domain.CartLine) error {
	c.mu.Lock()

	next := fn(slices.Clone(c.lines))
	if next == nil {
		next = []domain.CartLine{}
	}

	if err := c.store.Set(ctx, storage.KeyCart, next); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("store.Set: %w", err)
	}

	c.lines = next
	c.recompute()
	payload := c.payload()
	c.mu.Unlock()

	c.publish(payload)
	return nil
}

func (c *Container) load(ctx context.Context) []domain.CartLine {
	persisted, ok := storage.Get[[]domain.CartLine](ctx, c.store, storage.KeyCart)
	if !ok {
		return []domain.CartLine{}
	}

	lines := make([]domain.CartLine, 0, len(persisted))
	seen := make(map[string]int, len(persisted))
	for _, line := range persisted {
		if line.ID == "" || line.Quantity < 1 || line.Price.IsNegative() {
			c.log.WithField("product_id", line.ID).Warn("dropping invalid persisted line")
			continue
		}
		if i, ok := seen[line.ID]; ok {
			lines[i].Quantity += line.Quantity
			continue
		}
		seen[line.ID] = len(lines)
		lines = append(lines, line)
	}

	return lines
}

func (c *Container) recompute() {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.Subtotal())
	}

	c.count = len(c.lines)
	c.total = total
}

func (c *Container) payload() *event.CartPayload {
	return &event.CartPayload{
		Lines: slices.Clone(c.lines),
		Count: c.count,
		Total: c.total,
	}
}

func (c *Container) publish(p *event.CartPayload) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(event.Event{Kind: event.KindCartChanged, Cart: p})
}

func byID(id string) func(domain.CartLine) bool {
	return func(l domain.CartLine) bool { return l.ID == id }
}
