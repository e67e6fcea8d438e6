package refund

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/pointbarre/quoteapi/internal/pricing"
	"github.com/pointbarre/quoteapi/internal/tax"
)

// ErrNothingToRefund is returned when the request selects no refundable
// quantity and no shipping refund.
var ErrNothingToRefund = errors.New("nothing to refund")

// ErrUnknownOrderLine is returned when the request names a line the
// order does not contain.
var ErrUnknownOrderLine = errors.New("unknown order line")

// Direction states which way the tax math runs. A refund starts from
// the tax-inclusive amounts the customer paid and removes taxes; a
// charge starts from tax-exclusive amounts and adds them.
type Direction string

const (
	DirectionRefund Direction = "refund"
	DirectionCharge Direction = "charge"
)

// OrderLine is a sold line as the composer needs it. Unit prices are
// the ones the order was invoiced with.
type OrderLine struct {
	ID               int64
	ProductID        int64
	VariantID        int64
	Quantity         int
	RefundedQuantity int
	UnitPriceTaxExcl decimal.Decimal
	UnitPriceTaxIncl decimal.Decimal
	AddressID        int64
}

// Order carries what the composer needs from the order header. The
// rounding mode is the one the order was priced with, so a credit note
// always mirrors its order even when the shop default changed since.
// Line taxes resolve against the invoice address, shipping taxes
// against the delivery address.
type Order struct {
	ID                      int64
	ShopID                  int64
	CurrencyID              int64
	Round                   pricing.RoundMode
	InvoiceAddress          tax.Address
	DeliveryAddress         tax.Address
	ShippingTaxExcl         decimal.Decimal
	ShippingTaxIncl         decimal.Decimal
	ShippingTaxRulesGroupID int64
	Lines                   []OrderLine
}

// Request selects what to refund: quantities per order line, optionally
// the order's shipping, optionally a manual amount.
type Request struct {
	Quantities map[int64]int
	// Shipping refunds shipping costs. A nil ShippingAmount refunds
	// what the order was charged; otherwise ShippingAmount is taken on
	// the direction's authoritative tax side.
	Shipping       bool
	ShippingAmount *decimal.Decimal
	// Amount is deducted from the computed product total, or, when
	// AmountChosen is set, recorded as the credit amount itself.
	Amount       decimal.Decimal
	AmountChosen bool
	// Direction defaults to DirectionRefund.
	Direction Direction
}

// LineRefund is one refunded portion of an order line.
type LineRefund struct {
	LineID        int64           `json:"id_order_line"`
	ProductID     int64           `json:"id_product"`
	VariantID     int64           `json:"id_product_attribute"`
	Quantity      int             `json:"quantity"`
	AmountTaxExcl decimal.Decimal `json:"amount_tax_excl"`
	AmountTaxIncl decimal.Decimal `json:"amount_tax_incl"`
}

// TaxBucket aggregates refunded amounts for one tax-rules group. Under
// total rounding the bucket key also carries the delivery address, so
// amounts rounded together at sale time are rounded together again.
type TaxBucket struct {
	Key             string          `json:"key"`
	TaxRulesGroupID int64           `json:"id_tax_rules_group"`
	AddressID       int64           `json:"id_address,omitempty"`
	Rate            decimal.Decimal `json:"rate"`
	BaseTaxExcl     decimal.Decimal `json:"base_tax_excl"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
}

// Kind classifies a credit note: partial and full by the quantities
// left on the order, custom when the amount was chosen by hand or
// shipping was refunded.
type Kind string

const (
	KindPartial Kind = "partial"
	KindFull    Kind = "full"
	KindCustom  Kind = "custom"
)

// CreditNote is the composed, not yet persisted, refund document.
// TotalTaxExcl and TotalTaxIncl cover the product lines; shipping is
// carried separately.
type CreditNote struct {
	OrderID          int64           `json:"id_order"`
	CurrencyID       int64           `json:"id_currency"`
	Kind             Kind            `json:"kind"`
	Direction        Direction       `json:"direction"`
	Lines            []LineRefund    `json:"lines"`
	Taxes            []TaxBucket     `json:"taxes"`
	TotalTaxExcl     decimal.Decimal `json:"total_tax_excl"`
	TotalTaxIncl     decimal.Decimal `json:"total_tax_incl"`
	ShippingRefunded bool            `json:"shipping_refunded"`
	ShippingTaxExcl  decimal.Decimal `json:"shipping_tax_excl"`
	ShippingTaxIncl  decimal.Decimal `json:"shipping_tax_incl"`
	Amount           decimal.Decimal `json:"amount"`
}

// TaxSource resolves tax-rules groups and builds calculators for them.
// *tax.Resolver implements it.
type TaxSource interface {
	GroupFor(ctx context.Context, productID, variantID, shopID int64) (int64, error)
	CalculatorFor(ctx context.Context, taxRulesGroupID int64, addr tax.Address) (tax.Calculator, error)
}

// Composer turns refund requests into credit notes.
type Composer struct {
	Taxes TaxSource
	// Precision is the display precision of the order currency.
	Precision int32
}

type bucketAcc struct {
	TaxBucket
	calc tax.Calculator
	// raw accumulates the authoritative-side amounts under total
	// rounding, where tax is computed once per bucket.
	raw decimal.Decimal
}

// Compose builds a credit note for the request. Requested quantities
// are clamped to what each line still has refundable; lines clamped to
// zero are skipped.
func (c Composer) Compose(ctx context.Context, order Order, req Request) (CreditNote, error) {
	dir := req.Direction
	if dir == "" {
		dir = DirectionRefund
	}

	byID := make(map[int64]OrderLine, len(order.Lines))
	for _, line := range order.Lines {
		byID[line.ID] = line
	}
	for id := range req.Quantities {
		if _, ok := byID[id]; !ok {
			return CreditNote{}, fmt.Errorf("line %d: %w", id, ErrUnknownOrderLine)
		}
	}

	note := CreditNote{OrderID: order.ID, CurrencyID: order.CurrencyID, Direction: dir}
	buckets := make(map[string]*bucketAcc)
	remaining := 0

	for _, line := range order.Lines {
		refundable := line.Quantity - line.RefundedQuantity
		if refundable < 0 {
			refundable = 0
		}
		qty := req.Quantities[line.ID]
		if qty > refundable {
			qty = refundable
		}
		remaining += refundable - qty
		if qty <= 0 {
			continue
		}

		group, err := c.Taxes.GroupFor(ctx, line.ProductID, line.VariantID, order.ShopID)
		if err != nil {
			return CreditNote{}, fmt.Errorf("line %d tax group: %w", line.ID, err)
		}
		calc, err := c.Taxes.CalculatorFor(ctx, group, order.InvoiceAddress)
		if err != nil {
			return CreditNote{}, fmt.Errorf("line %d tax calculator: %w", line.ID, err)
		}

		unitExcl, unitIncl := unitAmounts(dir, calc, line)
		excl, incl := c.lineAmounts(order.Round, unitExcl, unitIncl, qty)
		note.Lines = append(note.Lines, LineRefund{
			LineID:        line.ID,
			ProductID:     line.ProductID,
			VariantID:     line.VariantID,
			Quantity:      qty,
			AmountTaxExcl: excl,
			AmountTaxIncl: incl,
		})

		key := bucketKey(order.Round, group, line)
		b, ok := buckets[key]
		if !ok {
			b = &bucketAcc{calc: calc}
			b.Key = key
			b.TaxRulesGroupID = group
			b.Rate = calc.TotalRate()
			if order.Round == pricing.RoundTotal {
				b.AddressID = line.AddressID
			}
			buckets[key] = b
		}
		if order.Round == pricing.RoundTotal {
			// Tax is computed once per bucket, from the raw sum of the
			// direction's authoritative side.
			q := decimal.NewFromInt(int64(qty))
			if dir == DirectionCharge {
				b.raw = b.raw.Add(unitExcl.Mul(q))
			} else {
				b.raw = b.raw.Add(unitIncl.Mul(q))
			}
		} else {
			b.BaseTaxExcl = b.BaseTaxExcl.Add(excl)
			b.TaxAmount = b.TaxAmount.Add(incl.Sub(excl))
		}
	}

	if req.Shipping {
		if err := c.refundShipping(ctx, order, req, dir, &note); err != nil {
			return CreditNote{}, err
		}
	}

	if len(note.Lines) == 0 && !note.ShippingRefunded {
		return CreditNote{}, ErrNothingToRefund
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b := buckets[key]
		if order.Round == pricing.RoundTotal {
			if dir == DirectionCharge {
				b.BaseTaxExcl = pricing.Round(b.raw, c.Precision)
				b.TaxAmount = pricing.Round(b.calc.AddTaxes(b.raw), c.Precision).Sub(b.BaseTaxExcl)
			} else {
				incl := pricing.Round(b.raw, c.Precision)
				b.BaseTaxExcl = pricing.Round(b.calc.RemoveTaxes(b.raw), c.Precision)
				b.TaxAmount = incl.Sub(b.BaseTaxExcl)
			}
		}
		note.Taxes = append(note.Taxes, b.TaxBucket)
		note.TotalTaxExcl = note.TotalTaxExcl.Add(b.BaseTaxExcl)
		note.TotalTaxIncl = note.TotalTaxIncl.Add(b.BaseTaxExcl).Add(b.TaxAmount)
	}

	// A manual amount, unless chosen outright, deducts from the
	// recomputed side of the product total.
	if req.Amount.IsPositive() && !req.AmountChosen {
		if dir == DirectionCharge {
			note.TotalTaxIncl = note.TotalTaxIncl.Sub(req.Amount)
		} else {
			note.TotalTaxExcl = note.TotalTaxExcl.Sub(req.Amount)
		}
	}
	if req.AmountChosen {
		note.Amount = req.Amount
	} else if dir == DirectionCharge {
		note.Amount = note.TotalTaxExcl
	} else {
		note.Amount = note.TotalTaxIncl
	}

	note.Kind = KindPartial
	if remaining == 0 && len(note.Lines) > 0 {
		note.Kind = KindFull
	}
	if req.Amount.IsPositive() && !req.AmountChosen {
		note.Kind = KindPartial
	}
	if (req.Amount.IsPositive() && req.AmountChosen) || note.ShippingRefunded {
		note.Kind = KindCustom
	}
	return note, nil
}

func (c Composer) refundShipping(ctx context.Context, order Order, req Request, dir Direction, note *CreditNote) error {
	amount := order.ShippingTaxIncl
	if dir == DirectionCharge {
		amount = order.ShippingTaxExcl
	}
	if req.ShippingAmount != nil {
		amount = *req.ShippingAmount
	}

	// Without a carrier tax group the shipping amount passes through
	// untaxed on both sides.
	other := amount
	if order.ShippingTaxRulesGroupID != 0 {
		calc, err := c.Taxes.CalculatorFor(ctx, order.ShippingTaxRulesGroupID, order.DeliveryAddress)
		if err != nil {
			return fmt.Errorf("shipping tax calculator: %w", err)
		}
		if dir == DirectionCharge {
			other = pricing.Round(calc.AddTaxes(amount), c.Precision)
		} else {
			other = pricing.Round(calc.RemoveTaxes(amount), c.Precision)
		}
	}

	note.ShippingRefunded = true
	if dir == DirectionCharge {
		note.ShippingTaxExcl = amount
		note.ShippingTaxIncl = other
	} else {
		note.ShippingTaxIncl = amount
		note.ShippingTaxExcl = other
	}
	return nil
}

// unitAmounts recomputes one side of the unit price through the
// calculator: a refund trusts the tax-inclusive price the customer
// paid, a charge trusts the tax-exclusive one.
func unitAmounts(dir Direction, calc tax.Calculator, line OrderLine) (decimal.Decimal, decimal.Decimal) {
	if dir == DirectionCharge {
		return line.UnitPriceTaxExcl, calc.AddTaxes(line.UnitPriceTaxExcl)
	}
	return calc.RemoveTaxes(line.UnitPriceTaxIncl), line.UnitPriceTaxIncl
}

func (c Composer) lineAmounts(mode pricing.RoundMode, unitExcl, unitIncl decimal.Decimal, qty int) (decimal.Decimal, decimal.Decimal) {
	q := decimal.NewFromInt(int64(qty))
	switch mode {
	case pricing.RoundItem:
		excl := pricing.Round(unitExcl, c.Precision).Mul(q)
		incl := pricing.Round(unitIncl, c.Precision).Mul(q)
		return excl, incl
	case pricing.RoundTotal:
		return unitExcl.Mul(q), unitIncl.Mul(q)
	default:
		excl := pricing.Round(unitExcl.Mul(q), c.Precision)
		incl := pricing.Round(unitIncl.Mul(q), c.Precision)
		return excl, incl
	}
}

func bucketKey(mode pricing.RoundMode, group int64, line OrderLine) string {
	key := strconv.FormatInt(group, 10)
	if mode == pricing.RoundTotal {
		key += "_" + strconv.FormatInt(line.AddressID, 10)
	}
	return key
}
