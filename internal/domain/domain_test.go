package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func TestMoney_MinorUnits(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		unit   currency.Unit
		want   int64
	}{
		{name: "rupees", amount: "572", unit: currency.INR, want: 57200},
		{name: "paise", amount: "167.99", unit: currency.INR, want: 16799},
		{name: "half paisa rounds up", amount: "199.505", unit: currency.INR, want: 19951},
		{name: "cents", amount: "12.3", unit: currency.USD, want: 1230},
		{name: "no minor unit", amount: "1500", unit: currency.JPY, want: 1500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := domain.Money{Amount: decimal.RequireFromString(tt.amount), Currency: tt.unit}
			assert.Equal(t, tt.want, m.MinorUnits())
		})
	}
}

func TestMoney_String(t *testing.T) {
	m := domain.Money{Amount: decimal.NewFromFloat(5.5), Currency: currency.EUR}
	assert.Equal(t, "EUR 5.50", m.String())
}

func TestParsePaymentMethod(t *testing.T) {
	pm, err := domain.ParsePaymentMethod("cod")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCOD, pm)

	pm, err = domain.ParsePaymentMethod("gateway")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentGateway, pm)

	_, err = domain.ParsePaymentMethod("cheque")
	require.EqualError(t, err, "payment method[cheque] is not valid")
}

func TestNewOrderRequest(t *testing.T) {
	lines := []domain.CartLine{
		{ID: "p1", CartID: gofakeit.UUID(), Name: "Mug", Price: decimal.NewFromInt(150), Quantity: 2, AddedAt: time.Now()},
		{ID: "p2", CartID: gofakeit.UUID(), Name: "Lamp", Price: decimal.NewFromInt(100), Quantity: 1, AddedAt: time.Now()},
	}
	totals := domain.Totals{
		Subtotal:   decimal.NewFromInt(400),
		Shipping:   decimal.NewFromInt(50),
		Tax:        decimal.NewFromInt(72),
		CODFee:     decimal.NewFromInt(50),
		GrandTotal: decimal.NewFromInt(572),
	}
	addr := domain.Address{Name: gofakeit.Name(), Email: gofakeit.Email(), Phone: "9876543210", Pincode: "560001"}

	got := domain.NewOrderRequest(lines, totals, domain.PaymentCOD, addr)

	want := domain.OrderRequest{
		Items: []domain.OrderItem{
			{ProductID: "p1", Name: "Mug", Quantity: 2, Price: decimal.NewFromInt(150)},
			{ProductID: "p2", Name: "Lamp", Quantity: 1, Price: decimal.NewFromInt(100)},
		},
		Subtotal:        totals.Subtotal,
		Shipping:        totals.Shipping,
		Tax:             totals.Tax,
		GrandTotal:      totals.GrandTotal,
		PaymentMethod:   domain.PaymentCOD,
		ShippingAddress: addr,
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NewOrderRequest mismatch (-want +got):\n%s", diff)
	}
}

func TestProduct_CartLine(t *testing.T) {
	p := domain.Product{ID: "p1", Name: "Mug", Price: decimal.NewFromInt(200), Category: "kitchen", Stock: 4}

	line := p.CartLine(3)
	assert.Equal(t, "p1", line.ID)
	assert.Equal(t, 3, line.Quantity)
	assert.True(t, decimal.NewFromInt(600).Equal(line.Subtotal()))
	assert.Empty(t, line.CartID)

	item := p.WishlistItem()
	assert.Equal(t, "kitchen", item.Category)
	assert.Equal(t, 1, item.CartLine(1).Quantity)
}

func TestSession_KeepsUnknownFields(t *testing.T) {
	raw := `{"id":"u1","name":"Asha","email":"asha@example.com","role":"admin","token":"t1","avatar":"a.png","verified":true}`

	var s domain.Session
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.Equal(t, "u1", s.ID)
	assert.Equal(t, domain.RoleAdmin, s.Role)
	assert.Equal(t, map[string]any{"avatar": "a.png", "verified": true}, s.Extra)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestSession_KnownFieldsWinOverExtra(t *testing.T) {
	s := domain.Session{ID: "u1", Token: "t1", Extra: map[string]any{"id": "shadow", "theme": "dark"}}

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1","name":"","email":"","role":"","token":"t1","theme":"dark"}`, string(out))
}

func TestSession_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantError string
	}{
		{name: "not an object", raw: `[1,2]`, wantError: "cannot unmarshal"},
		{name: "numeric token", raw: `{"token":42}`, wantError: "session field token"},
		{name: "numeric role", raw: `{"role":1}`, wantError: "session field role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s domain.Session
			require.ErrorContains(t, json.Unmarshal([]byte(tt.raw), &s), tt.wantError)
		})
	}
}
