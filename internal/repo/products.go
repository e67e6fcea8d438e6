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

// ErrProductNotFound indicates the product does not exist for the shop.
var ErrProductNotFound = errors.New("product not found")

// Product is the catalog row consumed by product-properties assembly.
type Product struct {
	ID        int64
	Name      string
	Reference string
	Weight    decimal.Decimal
	ImageID   int64
	LinkRef   string
}

// ProductsRepo reads product rows and per-shop base prices.
type ProductsRepo struct {
	Pool *pgxpool.Pool
}

// BasePrice returns the shared base price and ecotax of a product in a shop.
func (r ProductsRepo) BasePrice(ctx context.Context, productID, shopID int64) (pricing.BasePrice, error) {
	var price, ecotax decimal.Decimal
	err := r.Pool.QueryRow(ctx, `
		SELECT price, ecotax
		FROM product_shop
		WHERE product_id = $1 AND shop_id = $2`, productID, shopID).Scan(&price, &ecotax)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.BasePrice{}, fmt.Errorf("product %d shop %d: %w", productID, shopID, ErrProductNotFound)
	}
	if err != nil {
		return pricing.BasePrice{}, fmt.Errorf("base price: %w", err)
	}
	return pricing.BasePrice{Price: price, Ecotax: ecotax}, nil
}

// Get returns the catalog row of a product.
func (r ProductsRepo) Get(ctx context.Context, productID int64) (Product, error) {
	var p Product
	err := r.Pool.QueryRow(ctx, `
		SELECT id, name, reference, weight, image_id, link_ref
		FROM products
		WHERE id = $1`, productID).Scan(&p.ID, &p.Name, &p.Reference, &p.Weight, &p.ImageID, &p.LinkRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", productID, ErrProductNotFound)
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// AvailableQuantity returns the product-level stock. Stock is not
// partitioned by variant, every variant reports this figure.
func (r ProductsRepo) AvailableQuantity(ctx context.Context, productID int64) (int, error) {
	var qty int
	err := r.Pool.QueryRow(ctx, `
		SELECT COALESCE(quantity, 0)
		FROM stock_available
		WHERE product_id = $1`, productID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("available quantity: %w", err)
	}
	return qty, nil
}
