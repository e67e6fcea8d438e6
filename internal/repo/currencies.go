package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrCurrencyNotFound indicates the currency id is unknown.
var ErrCurrencyNotFound = errors.New("currency not found")

// CurrenciesRepo converts amounts between the default currency and a
// target currency through stored conversion rates.
type CurrenciesRepo struct {
	Pool *pgxpool.Pool
	// DefaultCurrencyID short-circuits conversion for the shop currency.
	DefaultCurrencyID int64
}

// Convert multiplies an amount by the conversion rate of the target
// currency. The default currency converts to itself.
func (r CurrenciesRepo) Convert(ctx context.Context, amount decimal.Decimal, currencyID int64) (decimal.Decimal, error) {
	if currencyID == 0 || currencyID == r.DefaultCurrencyID {
		return amount, nil
	}
	rate, err := r.ConversionRate(ctx, currencyID)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// ConversionRate returns the rate from the default currency.
func (r CurrenciesRepo) ConversionRate(ctx context.Context, currencyID int64) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := r.Pool.QueryRow(ctx, `
		SELECT conversion_rate FROM currencies WHERE id = $1`, currencyID).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("currency %d: %w", currencyID, ErrCurrencyNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("conversion rate: %w", err)
	}
	return rate, nil
}
