package refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pointbarre/quoteapi/internal/pricing"
)

// ErrOrderNotFound is returned when the order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// Store persists credit notes and loads the order state they are
// composed from.
type Store struct {
	Pool *pgxpool.Pool
}

// Order loads the order header, its addresses and its lines. The
// stored round_type is the mode the order was priced with.
func (s *Store) Order(ctx context.Context, orderID int64) (Order, error) {
	var (
		order     Order
		roundType string
	)
	err := s.Pool.QueryRow(ctx, `
		SELECT o.id, o.shop_id, o.currency_id, o.round_type,
		       o.total_shipping_tax_excl, o.total_shipping_tax_incl,
		       o.shipping_tax_rules_group_id,
		       COALESCE(ia.country_id, 0), COALESCE(ia.state_id, 0), COALESCE(ia.zip, ''),
		       COALESCE(da.country_id, 0), COALESCE(da.state_id, 0), COALESCE(da.zip, '')
		FROM orders o
		LEFT JOIN addresses ia ON ia.id = o.invoice_address_id
		LEFT JOIN addresses da ON da.id = o.delivery_address_id
		WHERE o.id = $1`,
		orderID,
	).Scan(
		&order.ID, &order.ShopID, &order.CurrencyID, &roundType,
		&order.ShippingTaxExcl, &order.ShippingTaxIncl,
		&order.ShippingTaxRulesGroupID,
		&order.InvoiceAddress.CountryID, &order.InvoiceAddress.StateID, &order.InvoiceAddress.Zip,
		&order.DeliveryAddress.CountryID, &order.DeliveryAddress.StateID, &order.DeliveryAddress.Zip,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	order.Round = pricing.ParseRoundMode(roundType)

	rows, err := s.Pool.Query(ctx, `
		SELECT id, product_id, variant_id, quantity, refunded_quantity,
		       unit_price_tax_excl, unit_price_tax_incl, address_id
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id`,
		orderID,
	)
	if err != nil {
		return Order{}, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(
			&line.ID, &line.ProductID, &line.VariantID,
			&line.Quantity, &line.RefundedQuantity,
			&line.UnitPriceTaxExcl, &line.UnitPriceTaxIncl, &line.AddressID,
		); err != nil {
			return Order{}, fmt.Errorf("scan order line: %w", err)
		}
		order.Lines = append(order.Lines, line)
	}
	return order, rows.Err()
}

// Summary is a persisted credit note header.
type Summary struct {
	ID               int64           `json:"id"`
	OrderID          int64           `json:"id_order"`
	Kind             Kind            `json:"kind"`
	TotalTaxExcl     decimal.Decimal `json:"total_tax_excl"`
	TotalTaxIncl     decimal.Decimal `json:"total_tax_incl"`
	ShippingRefunded bool            `json:"shipping_refunded"`
	Amount           decimal.Decimal `json:"amount"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ListByOrder returns the order's credit notes, newest first.
func (s *Store) ListByOrder(ctx context.Context, orderID int64, limit, offset int) ([]Summary, int, error) {
	var total int
	if err := s.Pool.QueryRow(ctx,
		`SELECT count(*) FROM credit_notes WHERE order_id = $1`, orderID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count credit notes: %w", err)
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT id, order_id, kind, total_tax_excl, total_tax_incl,
		       shipping_refunded, amount, created_at
		FROM credit_notes
		WHERE order_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`,
		orderID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list credit notes: %w", err)
	}
	defer rows.Close()

	var notes []Summary
	for rows.Next() {
		var n Summary
		var kind string
		if err := rows.Scan(&n.ID, &n.OrderID, &kind, &n.TotalTaxExcl, &n.TotalTaxIncl,
			&n.ShippingRefunded, &n.Amount, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan credit note: %w", err)
		}
		n.Kind = Kind(kind)
		notes = append(notes, n)
	}
	return notes, total, rows.Err()
}

// Save writes the credit note, its lines and tax buckets, and bumps the
// refunded quantities of the touched order lines. Everything happens in
// one transaction so a failure leaves no half-written refund behind.
func (s *Store) Save(ctx context.Context, note CreditNote) (int64, error) {
	var noteID int64
	err := pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO credit_notes (order_id, currency_id, kind, direction,
				total_tax_excl, total_tax_incl,
				shipping_refunded, shipping_tax_excl, shipping_tax_incl,
				amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id`,
			note.OrderID, note.CurrencyID, string(note.Kind), string(note.Direction),
			note.TotalTaxExcl, note.TotalTaxIncl,
			note.ShippingRefunded, note.ShippingTaxExcl, note.ShippingTaxIncl,
			note.Amount, time.Now(),
		).Scan(&noteID)
		if err != nil {
			return fmt.Errorf("insert credit note: %w", err)
		}

		for _, line := range note.Lines {
			if _, err := tx.Exec(ctx, `
				INSERT INTO credit_note_lines (credit_note_id, order_line_id, product_id, variant_id, quantity, amount_tax_excl, amount_tax_incl)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				noteID, line.LineID, line.ProductID, line.VariantID,
				line.Quantity, line.AmountTaxExcl, line.AmountTaxIncl,
			); err != nil {
				return fmt.Errorf("insert credit note line: %w", err)
			}
			tag, err := tx.Exec(ctx, `
				UPDATE order_lines
				SET refunded_quantity = refunded_quantity + $3
				WHERE id = $1 AND order_id = $2 AND refunded_quantity + $3 <= quantity`,
				line.LineID, note.OrderID, line.Quantity,
			)
			if err != nil {
				return fmt.Errorf("update refunded quantity: %w", err)
			}
			if tag.RowsAffected() == 0 {
				// A concurrent refund consumed the quantity first.
				return fmt.Errorf("line %d: %w", line.LineID, ErrNothingToRefund)
			}
		}

		for _, bucket := range note.Taxes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO credit_note_taxes (credit_note_id, tax_rules_group_id, address_id, rate, base_tax_excl, tax_amount)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				noteID, bucket.TaxRulesGroupID, bucket.AddressID,
				bucket.Rate, bucket.BaseTaxExcl, bucket.TaxAmount,
			); err != nil {
				return fmt.Errorf("insert credit note tax: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return noteID, nil
}
