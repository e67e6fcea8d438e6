package promo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store loads active gift rules.
type Store struct {
	Pool *pgxpool.Pool
}

// ActiveRules returns rules whose validity window includes now() in the
// database, ordered by id for deterministic evaluation.
func (s *Store) ActiveRules(ctx context.Context) ([]Rule, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, product_id, variant_id, min_quantity, gift_quantity, repeat_grant, valid_from, valid_to
		FROM promo_rules
		WHERE (valid_from IS NULL OR valid_from <= now())
		  AND (valid_to IS NULL OR valid_to >= now())
		ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list promo rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(
			&r.ID, &r.Name, &r.ProductID, &r.VariantID,
			&r.MinQuantity, &r.GiftQuantity, &r.Repeat,
			&r.ValidFrom, &r.ValidTo,
		); err != nil {
			return nil, fmt.Errorf("scan promo rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
