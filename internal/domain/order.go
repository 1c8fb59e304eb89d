package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentGateway PaymentMethod = "gateway"
	PaymentCOD     PaymentMethod = "cod"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentGateway, PaymentCOD:
		return PaymentMethod(s), nil
	default:
		return "", fmt.Errorf("payment method[%s] is not valid", s)
	}
}

type Address struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,simple_email"`
	Phone   string `json:"phone" validate:"required,digits=10"`
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Pincode string `json:"pincode" validate:"required,digits=6"`
}

type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Shipping   decimal.Decimal `json:"shipping"`
	Tax        decimal.Decimal `json:"tax"`
	CODFee     decimal.Decimal `json:"codFee"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderRequest is the order payload sent to the backend for both the
// gateway verification and the cash-on-delivery endpoint.
type OrderRequest struct {
	Items           []OrderItem     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Shipping        decimal.Decimal `json:"shipping"`
	Tax             decimal.Decimal `json:"tax"`
	GrandTotal      decimal.Decimal `json:"grandTotal"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	ShippingAddress Address         `json:"shippingAddress"`
}

type OrderConfirmation struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
}

func NewOrderRequest(lines []CartLine, totals Totals, method PaymentMethod, address Address) OrderRequest {
	items := make([]OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, OrderItem{
			ProductID: line.ID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}

	return OrderRequest{
		Items:           items,
		Subtotal:        totals.Subtotal,
		Shipping:        totals.Shipping,
		Tax:             totals.Tax,
		GrandTotal:      totals.GrandTotal,
		PaymentMethod:   method,
		ShippingAddress: address,
	}
}
