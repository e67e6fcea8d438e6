package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pointbarre/quoteapi/internal/pricing"
)

// SpecificPricesRepo resolves promotional price overrides. Each scoping
// column is either an exact match or the zero wildcard; more specific
// rows win, then the highest applicable quantity threshold.
type SpecificPricesRepo struct {
	Pool *pgxpool.Pool
}

// Find returns the best matching override for the query, or nil.
func (r SpecificPricesRepo) Find(ctx context.Context, q pricing.SpecificQuery) (*pricing.Specific, error) {
	qty := q.Quantity
	if q.RealQuantity > qty {
		qty = q.RealQuantity
	}
	var (
		price        decimal.Decimal
		currencyID   int64
		variantID    int64
		reduction    decimal.Decimal
		reductionTyp string
		reductionTax bool
	)
	err := r.Pool.QueryRow(ctx, `
		SELECT price, currency_id, variant_id, reduction, reduction_type, reduction_tax
		FROM specific_prices
		WHERE product_id = $1
		  AND (shop_id = $2 OR shop_id = 0)
		  AND (currency_id = $3 OR currency_id = 0)
		  AND (country_id = $4 OR country_id = 0)
		  AND (group_id = $5 OR group_id = 0)
		  AND (customer_id = $6 OR customer_id = 0)
		  AND (cart_id = $7 OR cart_id = 0)
		  AND (variant_id = $8 OR variant_id = 0)
		  AND from_quantity <= $9
		ORDER BY customer_id DESC, cart_id DESC, variant_id DESC, group_id DESC,
		         country_id DESC, currency_id DESC, shop_id DESC, from_quantity DESC
		LIMIT 1`,
		q.ProductID, q.ShopID, q.CurrencyID, q.CountryID, q.GroupID,
		q.CustomerID, q.CartID, q.VariantID, qty,
	).Scan(&price, &currencyID, &variantID, &reduction, &reductionTyp, &reductionTax)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find specific price: %w", err)
	}
	return &pricing.Specific{
		// A negative stored price means "reduction only".
		HasPrice:      !price.IsNegative(),
		Price:         price,
		CurrencyID:    currencyID,
		VariantID:     variantID,
		Reduction:     reduction,
		ReductionType: reductionTyp,
		ReductionTax:  reductionTax,
	}, nil
}
