package event

import (
	"slices"
	"sync"

	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindLogin           Kind = "login"
	KindLogout          Kind = "logout"
	KindProfileUpdated  Kind = "profile-updated"
	KindCartChanged     Kind = "cart-changed"
	KindWishlistChanged Kind = "wishlist-changed"
)

// Event carries just enough for a passive listener, such as a badge, to
// update without reading the store. Only the payload matching Kind is set.
type Event struct {
	Kind     Kind
	Session  *domain.Session
	Cart     *CartPayload
	Wishlist *WishlistPayload
}

type CartPayload struct {
	Lines []domain.CartLine `json:"lines"`
	Count int               `json:"count"`
	Total decimal.Decimal   `json:"total"`
}

type WishlistPayload struct {
	Items []domain.WishlistItem `json:"items"`
	Count int                   `json:"count"`
}

type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
	kinds   []Kind
}

// Bus delivers events synchronously, in subscription order, on the
// publisher's goroutine. Publishers must not hold their own locks while publishing.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for the given kinds, or for every kind when none are given.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, handler: h, kinds: kinds})
	b.mu.Unlock()

	return sync.OnceFunc(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
	})
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if len(s.kinds) == 0 || slices.Contains(s.kinds, e.Kind) {
			targets = append(targets, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		h(e)
	}
}
