package tax

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/pointbarre/quoteapi/internal/dimension"
	"github.com/pointbarre/quoteapi/internal/variant"
)

// ErrRateNotFound is returned when no rate covers the requested group and
// destination.
var ErrRateNotFound = errors.New("tax rate not found")

// RateSource yields the percentage rate for a tax-rules group at a
// destination.
type RateSource interface {
	Rate(ctx context.Context, taxRulesGroupID int64, addr Address) (decimal.Decimal, error)
}

// DimensionRates derives rates from the configured VAT dimension, ignoring
// the destination. It backs deployments without a tax-rules table.
type DimensionRates struct {
	Dims dimension.Source
}

func (d DimensionRates) Rate(ctx context.Context, taxRulesGroupID int64, _ Address) (decimal.Decimal, error) {
	vats, err := d.Dims.VATs(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	for _, entry := range vats {
		if entry.TaxRulesGroupID != taxRulesGroupID {
			continue
		}
		rate, err := decimal.NewFromString(entry.RateLabel)
		if err != nil {
			return decimal.Zero, fmt.Errorf("vat entry %q: %w", entry.Label, err)
		}
		return rate, nil
	}
	return decimal.Zero, fmt.Errorf("group %d: %w", taxRulesGroupID, ErrRateNotFound)
}

// ChainRates tries each source in order and falls through on
// ErrRateNotFound, so a tax-rules table can be backed by the VAT
// dimension for groups it does not cover.
type ChainRates []RateSource

func (c ChainRates) Rate(ctx context.Context, taxRulesGroupID int64, addr Address) (decimal.Decimal, error) {
	for _, source := range c {
		rate, err := source.Rate(ctx, taxRulesGroupID, addr)
		if err == nil {
			return rate, nil
		}
		if !errors.Is(err, ErrRateNotFound) {
			return decimal.Zero, err
		}
	}
	return decimal.Zero, fmt.Errorf("group %d: %w", taxRulesGroupID, ErrRateNotFound)
}

// StaticRates serves fixed rates keyed by tax-rules group. Test helper.
type StaticRates map[int64]decimal.Decimal

func (s StaticRates) Rate(_ context.Context, taxRulesGroupID int64, _ Address) (decimal.Decimal, error) {
	rate, ok := s[taxRulesGroupID]
	if !ok {
		return decimal.Zero, fmt.Errorf("group %d: %w", taxRulesGroupID, ErrRateNotFound)
	}
	return rate, nil
}

// GroupCache memoises tax-rules-group lookups per product, variant and
// shop. It is injected explicitly so callers control its lifetime.
type GroupCache struct {
	mu sync.RWMutex
	m  map[string]int64
}

// NewGroupCache constructs an empty cache.
func NewGroupCache() *GroupCache {
	return &GroupCache{m: make(map[string]int64)}
}

func (c *GroupCache) get(key string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *GroupCache) set(key string, group int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = group
}

// Resolver maps variants to tax-rules groups and groups to calculators.
type Resolver struct {
	Catalog *variant.Catalog
	Rates   RateSource
	Groups  *GroupCache
	// Disabled short-circuits every calculator to a zero rate.
	Disabled bool
}

// GroupFor returns the tax-rules group of a product variant. The variant
// alone decides the group; the product and shop ids partition the cache
// the same way the lookup they memoise is keyed.
func (r *Resolver) GroupFor(ctx context.Context, productID, variantID, shopID int64) (int64, error) {
	key := strconv.FormatInt(productID, 10) + ":" + strconv.FormatInt(variantID, 10) + ":" + strconv.FormatInt(shopID, 10)
	if r.Groups != nil {
		if group, ok := r.Groups.get(key); ok {
			return group, nil
		}
	}
	v, err := r.Catalog.Get(ctx, variantID)
	if err != nil {
		return 0, err
	}
	if r.Groups != nil {
		r.Groups.set(key, v.TaxRulesGroupID)
	}
	return v.TaxRulesGroupID, nil
}

// CalculatorFor builds a calculator for a tax-rules group at a destination.
func (r *Resolver) CalculatorFor(ctx context.Context, taxRulesGroupID int64, addr Address) (Calculator, error) {
	if r.Disabled {
		return NewCalculator(decimal.Zero), nil
	}
	rate, err := r.Rates.Rate(ctx, taxRulesGroupID, addr)
	if err != nil {
		return Calculator{}, err
	}
	return NewCalculator(rate), nil
}
