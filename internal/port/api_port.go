package port

import (
	"context"

	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

type AuthAPI interface {
	Login(ctx context.Context, email, password string) (domain.Credentials, error)
	Register(ctx context.Context, req RegisterRequest) (domain.Credentials, error)
}

type ProductQuery struct {
	Search   string
	Category string
	Page     int
	Limit    int
}

type CatalogAPI interface {
	SearchProducts(ctx context.Context, q ProductQuery) (domain.ProductPage, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

type PaymentOrderRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Receipt  string          `json:"receipt"`
}

// PaymentOrder is the gateway order handle created by the backend.
// Amount is in minor units.
type PaymentOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type VerifyPaymentRequest struct {
	PaymentOrderID string              `json:"paymentOrderId"`
	PaymentID      string              `json:"paymentId"`
	Signature      string              `json:"signature"`
	Order          domain.OrderRequest `json:"order"`
}

type OrderAPI interface {
	CreatePaymentOrder(ctx context.Context, req PaymentOrderRequest) (PaymentOrder, error)
	VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (domain.OrderConfirmation, error)
	CreateCODOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderConfirmation, error)
}
