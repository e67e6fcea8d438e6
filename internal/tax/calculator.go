package tax

import (
	"github.com/shopspring/decimal"
)

// Address carries the destination fields tax resolution depends on.
type Address struct {
	CountryID int64
	StateID   int64
	Zip       string
}

// Calculator applies a flat percentage rate to tax-exclusive or
// tax-inclusive amounts.
type Calculator struct {
	rate decimal.Decimal
}

// NewCalculator builds a calculator for a percentage rate, e.g. 20 for 20%.
func NewCalculator(rate decimal.Decimal) Calculator {
	return Calculator{rate: rate}
}

var hundred = decimal.NewFromInt(100)

// AddTaxes converts a tax-exclusive amount into a tax-inclusive one.
func (c Calculator) AddTaxes(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(c.factor())
}

// RemoveTaxes converts a tax-inclusive amount into a tax-exclusive one.
func (c Calculator) RemoveTaxes(amount decimal.Decimal) decimal.Decimal {
	return amount.Div(c.factor())
}

// TotalRate reports the combined percentage rate.
func (c Calculator) TotalRate() decimal.Decimal {
	return c.rate
}

func (c Calculator) factor() decimal.Decimal {
	return decimal.NewFromInt(1).Add(c.rate.Div(hundred))
}
