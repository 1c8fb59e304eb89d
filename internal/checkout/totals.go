package checkout

import (
	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	freeShippingAbove = decimal.NewFromInt(500)
	shippingFee       = decimal.NewFromInt(50)
	taxRate           = decimal.RequireFromString("0.18")
	codFee            = decimal.NewFromInt(50)
)

// ComputeTotals is used both for the preview and for the order sent to the
// backend, so the two always agree.
func ComputeTotals(cartTotal decimal.Decimal, method domain.PaymentMethod) domain.Totals {
	t := domain.Totals{
		Subtotal: cartTotal,
		Shipping: shippingFee,
		Tax:      cartTotal.Mul(taxRate).Round(2),
		CODFee:   decimal.Zero,
	}

	if cartTotal.GreaterThan(freeShippingAbove) {
		t.Shipping = decimal.Zero
	}
	if method == domain.PaymentCOD {
		t.CODFee = codFee
	}

	t.GrandTotal = t.Subtotal.Add(t.Shipping).Add(t.Tax).Add(t.CODFee)

	return t
}
