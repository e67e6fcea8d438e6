package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pointbarre/quoteapi/internal/pricing"
	"github.com/pointbarre/quoteapi/internal/tax"
	"github.com/pointbarre/quoteapi/internal/variant"
)

// PriceContext is the cart-level context shared by every line.
type PriceContext struct {
	CartID     int64
	ShopID     int64
	CurrencyID int64
	CustomerID int64
	GroupID    int64
	// Invoice is the fallback destination when a line has no delivery
	// address of its own.
	Invoice          tax.Address
	InvoiceAddressID int64
}

// Line is one cart line before pricing.
type Line struct {
	ID              int64
	ProductID       int64
	VariantID       int64
	Quantity        int
	AddressID       int64
	Address         tax.Address
	CustomizationID int64
}

// Gift marks a quantity of a product variant given away by an active
// promotion.
type Gift struct {
	ProductID int64
	VariantID int64
	Quantity  int
}

// PricedLine is the cart-line record with the fixed key set downstream
// consumers rely on.
type PricedLine struct {
	UniqueID                string          `json:"unique_id"`
	LineID                  int64           `json:"id"`
	ProductID               int64           `json:"id_product"`
	VariantID               int64           `json:"id_product_attribute"`
	AddressID               int64           `json:"id_address_delivery"`
	CustomizationID         int64           `json:"id_customization"`
	Quantity                int             `json:"quantity"`
	Gift                    bool            `json:"is_gift"`
	Price                   decimal.Decimal `json:"price"`
	PriceWT                 decimal.Decimal `json:"price_wt"`
	PriceWithoutReduction   decimal.Decimal `json:"price_without_reduction"`
	Total                   decimal.Decimal `json:"total"`
	TotalWT                 decimal.Decimal `json:"total_wt"`
	TaxRulesGroupID         int64           `json:"id_tax_rules_group"`
	ReductionApplies        bool            `json:"reduction_applies"`
	QuantityDiscountApplies bool            `json:"quantity_discount_applies"`
}

// Totals aggregates a priced cart.
type Totals struct {
	TaxExcl decimal.Decimal `json:"total_tax_excl"`
	TaxIncl decimal.Decimal `json:"total_tax_incl"`
}

// Adapter prices cart lines through the engine, applying the configured
// rounding strategy and gift splitting.
type Adapter struct {
	Engine *pricing.Engine
	Round  pricing.RoundMode
	// Precision is the display precision for rounded amounts.
	Precision int32
}

// UniqueLineID builds the composite line identifier: zero-padded product
// and variant ids followed by address and customization ids.
func UniqueLineID(productID, variantID, addressID, customizationID int64) string {
	return fmt.Sprintf("%010d%010d%d%d", productID, variantID, addressID, customizationID)
}

// PriceLines prices every line, splits gift quantities and returns the
// cart totals under the adapter's rounding mode.
func (a *Adapter) PriceLines(ctx context.Context, pc PriceContext, lines []Line, gifts []Gift) ([]PricedLine, Totals, error) {
	split := splitGifts(lines, gifts)
	out := make([]PricedLine, 0, len(split))

	// Under total rounding the per-group sums are rounded once at the
	// end instead of per line.
	exclByGroup := make(map[int64]decimal.Decimal)
	inclByGroup := make(map[int64]decimal.Decimal)
	var totals Totals

	for _, entry := range split {
		priced, group, unitExcl, unitIncl, err := a.priceLine(ctx, pc, entry.line, entry.gift)
		if err != nil {
			return nil, Totals{}, err
		}
		out = append(out, priced)

		if a.Round == pricing.RoundTotal {
			exclByGroup[group] = exclByGroup[group].Add(unitExcl.Mul(decimal.NewFromInt(int64(priced.Quantity))))
			inclByGroup[group] = inclByGroup[group].Add(unitIncl.Mul(decimal.NewFromInt(int64(priced.Quantity))))
		} else {
			totals.TaxExcl = totals.TaxExcl.Add(priced.Total)
			totals.TaxIncl = totals.TaxIncl.Add(priced.TotalWT)
		}
	}

	if a.Round == pricing.RoundTotal {
		for group, sum := range exclByGroup {
			totals.TaxExcl = totals.TaxExcl.Add(pricing.Round(sum, a.Precision))
			totals.TaxIncl = totals.TaxIncl.Add(pricing.Round(inclByGroup[group], a.Precision))
		}
	}
	return out, totals, nil
}

type splitEntry struct {
	line Line
	gift bool
}

// splitGifts carves gift quantities out of matching lines. The gift
// portion and the remainder always add up to the original quantity.
func splitGifts(lines []Line, gifts []Gift) []splitEntry {
	remaining := make(map[[2]int64]int, len(gifts))
	for _, g := range gifts {
		key := [2]int64{g.ProductID, variant.Normalize(g.VariantID)}
		remaining[key] += g.Quantity
	}

	out := make([]splitEntry, 0, len(lines))
	for _, line := range lines {
		key := [2]int64{line.ProductID, variant.Normalize(line.VariantID)}
		giftQty := remaining[key]
		if giftQty <= 0 {
			out = append(out, splitEntry{line: line})
			continue
		}
		if giftQty > line.Quantity {
			giftQty = line.Quantity
		}
		remaining[key] -= giftQty

		if rest := line.Quantity - giftQty; rest > 0 {
			kept := line
			kept.Quantity = rest
			out = append(out, splitEntry{line: kept})
		}
		gifted := line
		gifted.Quantity = giftQty
		out = append(out, splitEntry{line: gifted, gift: true})
	}
	return out
}

func (a *Adapter) priceLine(ctx context.Context, pc PriceContext, line Line, gift bool) (PricedLine, int64, decimal.Decimal, decimal.Decimal, error) {
	addr := line.Address
	addressID := line.AddressID
	if addressID == 0 {
		addr = pc.Invoice
		addressID = pc.InvoiceAddressID
	}
	variantID := variant.Normalize(line.VariantID)

	base := pricing.Request{
		ProductID:         line.ProductID,
		ShopID:            pc.ShopID,
		Quantity:          line.Quantity,
		VariantID:         variantID,
		CurrencyID:        pc.CurrencyID,
		CountryID:         addr.CountryID,
		StateID:           addr.StateID,
		Zip:               addr.Zip,
		GroupID:           pc.GroupID,
		CustomerID:        pc.CustomerID,
		CartID:            pc.CartID,
		CustomizationID:   line.CustomizationID,
		UseReduction:      true,
		UseGroupReduction: true,
		UseEcotax:         true,
	}

	excl := base
	incl := base
	incl.UseTax = true
	without := incl
	without.UseReduction = false

	unitExcl, err := a.Engine.UnitPrice(ctx, excl)
	if err != nil {
		return PricedLine{}, 0, decimal.Zero, decimal.Zero, err
	}
	unitIncl, err := a.Engine.UnitPrice(ctx, incl)
	if err != nil {
		return PricedLine{}, 0, decimal.Zero, decimal.Zero, err
	}
	unitWithout, err := a.Engine.UnitPrice(ctx, without)
	if err != nil {
		return PricedLine{}, 0, decimal.Zero, decimal.Zero, err
	}

	group, err := a.Engine.Taxes.GroupFor(ctx, line.ProductID, variantID, pc.ShopID)
	if err != nil {
		return PricedLine{}, 0, decimal.Zero, decimal.Zero, err
	}

	if gift {
		unitExcl = decimal.Zero
		unitIncl = decimal.Zero
	}

	qty := decimal.NewFromInt(int64(line.Quantity))
	var total, totalWT decimal.Decimal
	switch a.Round {
	case pricing.RoundItem:
		total = pricing.Round(unitExcl, a.Precision).Mul(qty)
		totalWT = pricing.Round(unitIncl, a.Precision).Mul(qty)
	case pricing.RoundTotal:
		// Line totals stay unrounded, the cart aggregate rounds per
		// tax-rules group.
		total = unitExcl.Mul(qty)
		totalWT = unitIncl.Mul(qty)
	default:
		total = pricing.Round(unitExcl.Mul(qty), a.Precision)
		totalWT = pricing.Round(unitIncl.Mul(qty), a.Precision)
	}

	priced := PricedLine{
		UniqueID:                UniqueLineID(line.ProductID, variantID, addressID, line.CustomizationID),
		LineID:                  line.ID,
		ProductID:               line.ProductID,
		VariantID:               variantID,
		AddressID:               addressID,
		CustomizationID:         line.CustomizationID,
		Quantity:                line.Quantity,
		Gift:                    gift,
		Price:                   unitExcl,
		PriceWT:                 unitIncl,
		PriceWithoutReduction:   unitWithout,
		Total:                   total,
		TotalWT:                 totalWT,
		TaxRulesGroupID:         group,
		ReductionApplies:        unitWithout.GreaterThan(unitIncl) && !gift,
		QuantityDiscountApplies: line.Quantity > 1 && unitWithout.GreaterThan(unitIncl) && !gift,
	}
	return priced, group, unitExcl, unitIncl, nil
}
