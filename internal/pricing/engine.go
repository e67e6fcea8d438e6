package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pointbarre/quoteapi/internal/obs"
	"github.com/pointbarre/quoteapi/internal/tax"
	"github.com/pointbarre/quoteapi/internal/variant"
)

// ErrInvalidArgument reports a caller contract violation such as a
// non-positive product id or quantity. Handlers map it to a client error
// instead of aborting the process the way the legacy storefront did.
var ErrInvalidArgument = errors.New("invalid pricing argument")

// DefaultDecimals is the precision used when a request does not ask for
// a specific one.
const DefaultDecimals int32 = 6

// Request is one unit-price computation.
type Request struct {
	ProductID int64
	ShopID    int64
	Quantity  int
	// VariantID is normalised before use; anything below the codec base
	// selects the default variant.
	VariantID int64
	// IgnoreVariant computes a variant-agnostic price. It is distinct
	// from asking for the default variant: variant-pinned specific
	// prices do not apply when the variant is ignored.
	IgnoreVariant   bool
	CurrencyID      int64
	CountryID       int64
	StateID         int64
	Zip             string
	GroupID         int64
	CustomerID      int64
	CartID          int64
	RealQuantity    int
	CustomizationID int64

	UseTax            bool
	UseReduction      bool
	OnlyReduction     bool
	UseEcotax         bool
	UseGroupReduction bool
	Decimals          int32
}

func (r Request) key() Key {
	return Key{
		ProductID:         r.ProductID,
		ShopID:            r.ShopID,
		CurrencyID:        r.CurrencyID,
		CountryID:         r.CountryID,
		StateID:           r.StateID,
		Zip:               r.Zip,
		GroupID:           r.GroupID,
		Quantity:          r.Quantity,
		VariantID:         r.VariantID,
		IgnoreVariant:     r.IgnoreVariant,
		CustomizationID:   r.CustomizationID,
		CustomerID:        r.CustomerID,
		CartID:            r.CartID,
		RealQuantity:      r.RealQuantity,
		UseTax:            r.UseTax,
		UseReduction:      r.UseReduction,
		OnlyReduction:     r.OnlyReduction,
		UseEcotax:         r.UseEcotax,
		UseGroupReduction: r.UseGroupReduction,
		Decimals:          r.Decimals,
	}
}

// Engine computes unit prices through an ordered pipeline of base price,
// specific-price override, currency conversion, customization delta,
// tax, promotional reduction and group reduction. Every collaborator is
// injected; the caches are plain objects owned by the caller.
type Engine struct {
	Products       ProductSource
	Specifics      SpecificSource
	Groups         GroupSource
	Currencies     CurrencySource
	Customizations CustomizationSource
	Taxes          *tax.Resolver
	EcotaxGroupID  int64
	Cache          *Cache
	BaseCache      *BaseCache
}

// UnitPrice runs the pipeline for one request.
func (e *Engine) UnitPrice(ctx context.Context, req Request) (decimal.Decimal, error) {
	if req.ProductID <= 0 {
		return decimal.Zero, fmt.Errorf("product id %d: %w", req.ProductID, ErrInvalidArgument)
	}
	if req.Quantity <= 0 {
		return decimal.Zero, fmt.Errorf("quantity %d: %w", req.Quantity, ErrInvalidArgument)
	}
	if req.Decimals <= 0 {
		req.Decimals = DefaultDecimals
	}
	if !req.IgnoreVariant {
		req.VariantID = variant.Normalize(req.VariantID)
	}

	key := req.key()
	if price, ok := e.Cache.Get(key); ok {
		obs.ObservePriceLookup("hit")
		return price, nil
	}
	obs.ObservePriceLookup("miss")

	price, err := e.compute(ctx, req)
	if err != nil {
		return decimal.Zero, err
	}
	e.Cache.Set(key, price)
	return price, nil
}

func (e *Engine) compute(ctx context.Context, req Request) (decimal.Decimal, error) {
	addr := tax.Address{CountryID: req.CountryID, StateID: req.StateID, Zip: req.Zip}

	base, err := e.basePrice(ctx, req.ProductID, req.ShopID)
	if err != nil {
		return decimal.Zero, err
	}
	price := base.Price

	spec, err := e.findSpecific(ctx, req)
	if err != nil {
		return decimal.Zero, err
	}
	if spec != nil && spec.HasPrice && !spec.Price.IsNegative() {
		// A variant-pinned override is skipped when the caller asked
		// for a variant-agnostic price.
		if !(spec.VariantID != 0 && req.IgnoreVariant) {
			price = spec.Price
		}
	}

	// Convert to the target currency unless the override is already
	// expressed in a fixed currency.
	fixedCurrency := spec != nil && spec.CurrencyID != 0
	if !fixedCurrency {
		price, err = e.convert(ctx, price, req.CurrencyID)
		if err != nil {
			return decimal.Zero, err
		}
	}

	if req.CustomizationID != 0 && e.Customizations != nil {
		delta, err := e.Customizations.Delta(ctx, req.CustomizationID)
		if err != nil {
			return decimal.Zero, err
		}
		delta, err = e.convert(ctx, delta, req.CurrencyID)
		if err != nil {
			return decimal.Zero, err
		}
		price = price.Add(delta)
	}

	calc, err := e.calculatorFor(ctx, req, addr)
	if err != nil {
		return decimal.Zero, err
	}
	if req.UseTax {
		price = calc.AddTaxes(price)
	}

	if req.UseEcotax && base.Ecotax.IsPositive() {
		eco, err := e.convert(ctx, base.Ecotax, req.CurrencyID)
		if err != nil {
			return decimal.Zero, err
		}
		if req.UseTax {
			ecoCalc, err := e.Taxes.CalculatorFor(ctx, e.EcotaxGroupID, addr)
			if err != nil {
				return decimal.Zero, err
			}
			eco = ecoCalc.AddTaxes(eco)
		}
		price = price.Add(eco)
	}

	reduction := decimal.Zero
	if req.UseReduction && spec != nil {
		switch spec.ReductionType {
		case ReductionPercentage:
			reduction = price.Mul(spec.Reduction)
		case ReductionAmount:
			amount := spec.Reduction
			if spec.CurrencyID == 0 {
				amount, err = e.convert(ctx, amount, req.CurrencyID)
				if err != nil {
					return decimal.Zero, err
				}
			}
			// Align the reduction with the tax treatment of the price
			// it is subtracted from.
			if req.UseTax && !spec.ReductionTax {
				amount = calc.AddTaxes(amount)
			}
			if !req.UseTax && spec.ReductionTax {
				amount = calc.RemoveTaxes(amount)
			}
			reduction = amount
		}
		price = price.Sub(reduction)
	}

	if req.OnlyReduction {
		return Round(reduction, req.Decimals), nil
	}

	if req.UseGroupReduction && e.Groups != nil {
		catReduction, ok, err := e.Groups.CategoryReduction(ctx, req.ProductID, req.GroupID)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			price = price.Mul(decimal.NewFromInt(1).Sub(catReduction))
		} else {
			percent, err := e.Groups.GroupReduction(ctx, req.GroupID)
			if err != nil {
				return decimal.Zero, err
			}
			price = price.Mul(decimal.NewFromInt(1).Sub(percent.Div(decimal.NewFromInt(100))))
		}
	}

	price = Round(price, req.Decimals)
	if price.IsNegative() {
		price = decimal.Zero
	}
	return price, nil
}

func (e *Engine) basePrice(ctx context.Context, productID, shopID int64) (BasePrice, error) {
	if bp, ok := e.BaseCache.get(productID, shopID); ok {
		return bp, nil
	}
	bp, err := e.Products.BasePrice(ctx, productID, shopID)
	if err != nil {
		return BasePrice{}, err
	}
	e.BaseCache.set(productID, shopID, bp)
	return bp, nil
}

func (e *Engine) findSpecific(ctx context.Context, req Request) (*Specific, error) {
	if e.Specifics == nil {
		return nil, nil
	}
	return e.Specifics.Find(ctx, SpecificQuery{
		ProductID:    req.ProductID,
		ShopID:       req.ShopID,
		CurrencyID:   req.CurrencyID,
		CountryID:    req.CountryID,
		GroupID:      req.GroupID,
		CustomerID:   req.CustomerID,
		CartID:       req.CartID,
		VariantID:    req.VariantID,
		Quantity:     req.Quantity,
		RealQuantity: req.RealQuantity,
	})
}

func (e *Engine) convert(ctx context.Context, amount decimal.Decimal, currencyID int64) (decimal.Decimal, error) {
	if e.Currencies == nil || currencyID == 0 {
		return amount, nil
	}
	return e.Currencies.Convert(ctx, amount, currencyID)
}

func (e *Engine) calculatorFor(ctx context.Context, req Request, addr tax.Address) (tax.Calculator, error) {
	lookupID := req.VariantID
	if req.IgnoreVariant {
		lookupID = variant.Base
	}
	group, err := e.Taxes.GroupFor(ctx, req.ProductID, lookupID, req.ShopID)
	if err != nil {
		return tax.Calculator{}, err
	}
	return e.Taxes.CalculatorFor(ctx, group, addr)
}
