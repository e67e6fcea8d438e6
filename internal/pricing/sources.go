package pricing

import (
	"context"

	"github.com/shopspring/decimal"
)

// BasePrice is the product-level price information shared by every
// variant of a product.
type BasePrice struct {
	Price  decimal.Decimal
	Ecotax decimal.Decimal
}

// ProductSource fetches product base prices per shop.
type ProductSource interface {
	BasePrice(ctx context.Context, productID, shopID int64) (BasePrice, error)
}

// Reduction types carried by a specific price.
const (
	ReductionAmount     = "amount"
	ReductionPercentage = "percentage"
)

// Specific is a promotional price override resolved by context. A zero
// CurrencyID means the override follows the order currency; a non-zero
// one pins it to that currency. A zero VariantID applies to every
// variant of the product.
type Specific struct {
	HasPrice      bool
	Price         decimal.Decimal
	CurrencyID    int64
	VariantID     int64
	ReductionType string

	// Reduction is a fraction for percentage reductions (0.2 for 20%)
	// and an absolute amount otherwise.
	Reduction    decimal.Decimal
	ReductionTax bool
}

// SpecificQuery carries every parameter the promotions lookup keys on.
type SpecificQuery struct {
	ProductID    int64
	ShopID       int64
	CurrencyID   int64
	CountryID    int64
	GroupID      int64
	CustomerID   int64
	CartID       int64
	VariantID    int64
	Quantity     int
	RealQuantity int
}

// SpecificSource resolves the best specific price for a query, or nil
// when none applies.
type SpecificSource interface {
	Find(ctx context.Context, q SpecificQuery) (*Specific, error)
}

// GroupSource resolves customer-group reductions. A category-specific
// reduction, when present, takes precedence over the group's blanket
// percentage.
type GroupSource interface {
	// CategoryReduction returns the reduction fraction for the product's
	// category, reporting whether one is configured.
	CategoryReduction(ctx context.Context, productID, groupID int64) (decimal.Decimal, bool, error)
	// GroupReduction returns the blanket reduction percentage of a group.
	GroupReduction(ctx context.Context, groupID int64) (decimal.Decimal, error)
}

// CurrencySource converts amounts from the default currency into a
// target currency.
type CurrencySource interface {
	Convert(ctx context.Context, amount decimal.Decimal, currencyID int64) (decimal.Decimal, error)
}

// CustomizationSource sums the price delta of a customization set.
type CustomizationSource interface {
	Delta(ctx context.Context, customizationID int64) (decimal.Decimal, error)
}
