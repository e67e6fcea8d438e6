package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// GroupsRepo resolves customer-group reductions.
type GroupsRepo struct {
	Pool *pgxpool.Pool
}

// CategoryReduction returns the reduction fraction configured for the
// product's category and the given group, if any.
func (r GroupsRepo) CategoryReduction(ctx context.Context, productID, groupID int64) (decimal.Decimal, bool, error) {
	var reduction decimal.Decimal
	err := r.Pool.QueryRow(ctx, `
		SELECT gr.reduction
		FROM group_reductions gr
		JOIN products p ON p.category_id = gr.category_id
		WHERE p.id = $1 AND gr.group_id = $2`, productID, groupID).Scan(&reduction)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("category reduction: %w", err)
	}
	return reduction, true, nil
}

// GroupReduction returns the blanket reduction percentage of a group.
// Unknown groups reduce by nothing.
func (r GroupsRepo) GroupReduction(ctx context.Context, groupID int64) (decimal.Decimal, error) {
	var percent decimal.Decimal
	err := r.Pool.QueryRow(ctx, `
		SELECT reduction_percent FROM customer_groups WHERE id = $1`, groupID).Scan(&percent)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("group reduction: %w", err)
	}
	return percent, nil
}
