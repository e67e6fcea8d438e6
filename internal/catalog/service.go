package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pointbarre/quoteapi/internal/cache"
	"github.com/pointbarre/quoteapi/internal/pricing"
	"github.com/pointbarre/quoteapi/internal/repo"
	"github.com/pointbarre/quoteapi/internal/variant"
)

// ProductReader is the catalog's view of product persistence.
type ProductReader interface {
	Get(ctx context.Context, productID int64) (repo.Product, error)
	AvailableQuantity(ctx context.Context, productID int64) (int, error)
}

// Defaults carries the anonymous storefront pricing context. Properties
// records are computed against these, per-customer pricing goes through
// the cart.
type Defaults struct {
	ShopID     int64
	CurrencyID int64
	CountryID  int64
	GroupID    int64
	Decimals   int32
	UseEcotax  bool
}

// Properties is the product-properties record with the fixed key set
// downstream rendering depends on. Key presence matters as much as the
// values.
type Properties struct {
	ProductID             int64               `json:"id_product"`
	VariantID             int64               `json:"id_product_attribute"`
	Name                  string              `json:"name"`
	Reference             string              `json:"reference"`
	Price                 decimal.Decimal     `json:"price"`
	PriceTaxExc           decimal.Decimal     `json:"price_tax_exc"`
	PriceWithoutReduction decimal.Decimal     `json:"price_without_reduction"`
	Reduction             decimal.Decimal     `json:"reduction"`
	UnitPrice             decimal.Decimal     `json:"unit_price"`
	Quantity              int                 `json:"quantity"`
	QuantityAllVersions   int                 `json:"quantity_all_versions"`
	Weight                decimal.Decimal     `json:"weight"`
	Attributes            []variant.Attribute `json:"attributes"`
	Features              []Feature           `json:"features"`
	ImageID               int64               `json:"id_image"`
	Link                  string              `json:"link"`
}

// Feature is one product feature entry. The synthetic model adds none,
// the key is kept for downstream consumers.
type Feature struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// VariantList is the payload of a variant enumeration.
type VariantList struct {
	ProductID int64             `json:"id_product"`
	Count     int               `json:"count"`
	Default   int64             `json:"default_variant_id"`
	Groups    []variant.Group   `json:"groups"`
	Variants  []variant.Variant `json:"variants"`
}

// Service assembles product-properties records and variant listings.
type Service struct {
	Products ProductReader
	Catalog  *variant.Catalog
	Engine   *pricing.Engine
	Cache    *cache.Cache
	Defaults Defaults
}

// Variants enumerates the synthetic grid for a product.
func (s *Service) Variants(ctx context.Context, productID int64) (VariantList, error) {
	if _, err := s.Products.Get(ctx, productID); err != nil {
		return VariantList{}, err
	}
	var grid []variant.Variant
	ok, err := s.Cache.GetJSON(ctx, cache.KeyVariants, &grid)
	if err != nil || !ok {
		grid, err = s.Catalog.List(ctx)
		if err != nil {
			return VariantList{}, err
		}
		_ = s.Cache.SetJSON(ctx, cache.KeyVariants, grid)
	}
	return VariantList{
		ProductID: productID,
		Count:     len(grid),
		Default:   variant.Base,
		Groups:    variant.Groups(),
		Variants:  grid,
	}, nil
}

// Properties builds the product-properties record for one variant. A
// non-positive countryID falls back to the storefront default country.
func (s *Service) Properties(ctx context.Context, productID, variantID int64, quantity int, countryID int64, useTax bool) (Properties, error) {
	variantID = variant.Normalize(variantID)
	if quantity <= 0 {
		quantity = 1
	}
	if countryID <= 0 {
		countryID = s.Defaults.CountryID
	}

	key := cache.KeyProductProperties(productID, variantID, useTax)
	// Cached records are computed for the default pricing context only.
	cacheable := quantity == 1 && countryID == s.Defaults.CountryID
	if cacheable {
		var cached Properties
		if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	product, err := s.Products.Get(ctx, productID)
	if err != nil {
		return Properties{}, err
	}
	v, err := s.Catalog.Get(ctx, variantID)
	if err != nil {
		return Properties{}, err
	}
	qty, err := s.Products.AvailableQuantity(ctx, productID)
	if err != nil {
		return Properties{}, err
	}

	base := pricing.Request{
		ProductID:  productID,
		ShopID:     s.Defaults.ShopID,
		Quantity:   quantity,
		VariantID:  variantID,
		CurrencyID: s.Defaults.CurrencyID,
		CountryID:  countryID,
		GroupID:    s.Defaults.GroupID,
		UseEcotax:  s.Defaults.UseEcotax,
		Decimals:   s.Defaults.Decimals,
	}

	withTax := base
	withTax.UseTax = true
	withTax.UseReduction = true
	price, err := s.Engine.UnitPrice(ctx, withTax)
	if err != nil {
		return Properties{}, err
	}

	taxExc := base
	taxExc.UseReduction = true
	priceTaxExc, err := s.Engine.UnitPrice(ctx, taxExc)
	if err != nil {
		return Properties{}, err
	}

	full := base
	full.UseTax = useTax
	priceWithout, err := s.Engine.UnitPrice(ctx, full)
	if err != nil {
		return Properties{}, err
	}

	reduc := base
	reduc.UseTax = useTax
	reduc.UseReduction = true
	reduc.OnlyReduction = true
	reduction, err := s.Engine.UnitPrice(ctx, reduc)
	if err != nil {
		return Properties{}, err
	}

	unit := price
	if !useTax {
		unit = priceTaxExc
	}

	suffix, err := s.Catalog.Name(ctx, v.ID)
	if err != nil {
		return Properties{}, err
	}

	props := Properties{
		ProductID:             productID,
		VariantID:             v.ID,
		Name:                  product.Name + suffix,
		Reference:             product.Reference,
		Price:                 price,
		PriceTaxExc:           priceTaxExc,
		PriceWithoutReduction: priceWithout,
		Reduction:             reduction,
		UnitPrice:             unit,
		Quantity:              qty,
		QuantityAllVersions:   qty,
		Weight:                product.Weight,
		Attributes:            v.Attributes,
		Features:              []Feature{},
		ImageID:               product.ImageID,
		Link:                  fmt.Sprintf("/products/%d-%s", productID, product.LinkRef),
	}
	if cacheable {
		_ = s.Cache.SetJSON(ctx, key, props)
	}
	return props, nil
}
