package port

import (
	"context"

	"github.com/nikolayk812/storefront-state/internal/payment"
)

type PaymentGateway interface {
	EnsureLoaded(ctx context.Context) error
	Open(ctx context.Context, opts payment.Options) (payment.Outcome, error)
}
