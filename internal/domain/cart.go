package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one product in the cart. ID is the product identity, CartID is
// unique per line and generated on insertion.
type CartLine struct {
	ID       string          `json:"id"`
	CartID   string          `json:"cartId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Image    string          `json:"image,omitempty"`
	AddedAt  time.Time       `json:"addedAt"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type WishlistItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image,omitempty"`
	Category string          `json:"category,omitempty"`
	AddedAt  time.Time       `json:"addedAt"`
}

// CartLine converts the saved item into a cart line of the given quantity.
func (w WishlistItem) CartLine(quantity int) CartLine {
	return CartLine{
		ID:       w.ID,
		Name:     w.Name,
		Price:    w.Price,
		Quantity: quantity,
		Image:    w.Image,
	}
}
