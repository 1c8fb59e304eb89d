package domain

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// MinorUnits returns the amount in the smallest unit of the currency,
// the way payment gateways expect it (paise for INR, cents for USD).
func (m Money) MinorUnits() int64 {
	scale, _ := currency.Standard.Rounding(m.Currency)
	return m.Amount.Shift(int32(scale)).Round(0).IntPart()
}

func (m Money) String() string {
	return m.Currency.String() + " " + m.Amount.StringFixed(2)
}
