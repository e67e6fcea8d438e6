package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pointbarre/quoteapi/internal/tax"
)

// TaxRulesRepo resolves percentage rates per tax-rules group and
// destination. Rules scope by country, then optionally by state and zip
// prefix; the most specific applicable rule wins.
type TaxRulesRepo struct {
	Pool *pgxpool.Pool
}

// Rate returns the rate of a group at a destination.
func (r TaxRulesRepo) Rate(ctx context.Context, taxRulesGroupID int64, addr tax.Address) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := r.Pool.QueryRow(ctx, `
		SELECT rate
		FROM tax_rules
		WHERE tax_rules_group_id = $1
		  AND (country_id = $2 OR country_id = 0)
		  AND (state_id = $3 OR state_id = 0)
		  AND (zip_prefix = '' OR $4 LIKE zip_prefix || '%')
		ORDER BY country_id DESC, state_id DESC, length(zip_prefix) DESC
		LIMIT 1`,
		taxRulesGroupID, addr.CountryID, addr.StateID, addr.Zip).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("group %d country %d: %w", taxRulesGroupID, addr.CountryID, tax.ErrRateNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("tax rate: %w", err)
	}
	return rate, nil
}
