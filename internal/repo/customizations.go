package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CustomizationsRepo sums the price deltas attached to a customization set.
type CustomizationsRepo struct {
	Pool *pgxpool.Pool
}

// Delta returns the total price impact of a customization. Unknown ids
// contribute nothing.
func (r CustomizationsRepo) Delta(ctx context.Context, customizationID int64) (decimal.Decimal, error) {
	var delta decimal.Decimal
	err := r.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(price), 0)
		FROM customization_items
		WHERE customization_id = $1`, customizationID).Scan(&delta)
	if err != nil {
		return decimal.Zero, fmt.Errorf("customization delta: %w", err)
	}
	return delta, nil
}
