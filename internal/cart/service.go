package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pointbarre/quoteapi/internal/tax"
	"github.com/pointbarre/quoteapi/internal/variant"
)

// ErrNotFound indicates the requested cart or cart line could not be
// located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Cart is the persistent cart header.
type Cart struct {
	ID               int64     `json:"id"`
	Token            string    `json:"token"`
	ShopID           int64     `json:"id_shop"`
	CurrencyID       int64     `json:"id_currency"`
	CustomerID       int64     `json:"id_customer"`
	GroupID          int64     `json:"id_group"`
	InvoiceAddressID int64     `json:"id_address_invoice"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreateParams carries the optional context a new cart starts with.
// Zero values fall back to the configured defaults at pricing time.
type CreateParams struct {
	ShopID           int64
	CurrencyID       int64
	CustomerID       int64
	GroupID          int64
	InvoiceAddressID int64
}

// LineParams describes a line to add to a cart.
type LineParams struct {
	ProductID       int64
	VariantID       int64
	Quantity        int
	AddressID       int64
	CustomizationID int64
}

// Service encapsulates cart persistence. Pricing lives in Adapter; the
// service only manages rows.
type Service struct {
	Pool *pgxpool.Pool
	Now  func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create inserts a new cart and returns it with a fresh public token.
func (s *Service) Create(ctx context.Context, p CreateParams) (Cart, error) {
	if s == nil || s.Pool == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	now := s.now()
	c := Cart{
		Token:            uuid.NewString(),
		ShopID:           p.ShopID,
		CurrencyID:       p.CurrencyID,
		CustomerID:       p.CustomerID,
		GroupID:          p.GroupID,
		InvoiceAddressID: p.InvoiceAddressID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO carts (token, shop_id, currency_id, customer_id, group_id, invoice_address_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`,
		c.Token, c.ShopID, c.CurrencyID, c.CustomerID, c.GroupID, c.InvoiceAddressID, now,
	).Scan(&c.ID)
	if err != nil {
		return Cart{}, fmt.Errorf("create cart: %w", err)
	}
	return c, nil
}

// Get loads a cart by its public token.
func (s *Service) Get(ctx context.Context, token string) (Cart, error) {
	var c Cart
	err := s.Pool.QueryRow(ctx, `
		SELECT id, token, shop_id, currency_id, customer_id, group_id, invoice_address_id, created_at, updated_at
		FROM carts
		WHERE token = $1`,
		token,
	).Scan(&c.ID, &c.Token, &c.ShopID, &c.CurrencyID, &c.CustomerID, &c.GroupID, &c.InvoiceAddressID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cart{}, ErrNotFound
	}
	if err != nil {
		return Cart{}, fmt.Errorf("get cart: %w", err)
	}
	return c, nil
}

// AddLine adds a line, merging quantities when the same product,
// variant, address and customization already sit in the cart. The
// variant id is normalised before persisting.
func (s *Service) AddLine(ctx context.Context, cartID int64, p LineParams) (Line, error) {
	if p.ProductID <= 0 || p.Quantity <= 0 {
		return Line{}, fmt.Errorf("product %d quantity %d: %w", p.ProductID, p.Quantity, ErrInvalidInput)
	}
	variantID := variant.Normalize(p.VariantID)

	var line Line
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO cart_lines (cart_id, product_id, variant_id, quantity, address_id, customization_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cart_id, product_id, variant_id, address_id, customization_id)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
		RETURNING id, product_id, variant_id, quantity, address_id, customization_id`,
		cartID, p.ProductID, variantID, p.Quantity, p.AddressID, p.CustomizationID,
	).Scan(&line.ID, &line.ProductID, &line.VariantID, &line.Quantity, &line.AddressID, &line.CustomizationID)
	if err != nil {
		return Line{}, fmt.Errorf("add cart line: %w", err)
	}
	s.touch(ctx, cartID)
	return line, nil
}

// UpdateLineQuantity replaces a line's quantity.
func (s *Service) UpdateLineQuantity(ctx context.Context, cartID, lineID int64, quantity int) (Line, error) {
	if quantity <= 0 {
		return Line{}, fmt.Errorf("quantity %d: %w", quantity, ErrInvalidInput)
	}
	var line Line
	err := s.Pool.QueryRow(ctx, `
		UPDATE cart_lines
		SET quantity = $3
		WHERE cart_id = $1 AND id = $2
		RETURNING id, product_id, variant_id, quantity, address_id, customization_id`,
		cartID, lineID, quantity,
	).Scan(&line.ID, &line.ProductID, &line.VariantID, &line.Quantity, &line.AddressID, &line.CustomizationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, ErrNotFound
	}
	if err != nil {
		return Line{}, fmt.Errorf("update cart line: %w", err)
	}
	s.touch(ctx, cartID)
	return line, nil
}

// RemoveLine deletes a line from the cart.
func (s *Service) RemoveLine(ctx context.Context, cartID, lineID int64) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1 AND id = $2`, cartID, lineID)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.touch(ctx, cartID)
	return nil
}

// Lines loads the cart's lines with each delivery address resolved for
// tax computation.
func (s *Service) Lines(ctx context.Context, cartID int64) ([]Line, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT l.id, l.product_id, l.variant_id, l.quantity, l.address_id, l.customization_id,
		       COALESCE(a.country_id, 0), COALESCE(a.state_id, 0), COALESCE(a.zip, '')
		FROM cart_lines l
		LEFT JOIN addresses a ON a.id = l.address_id
		WHERE l.cart_id = $1
		ORDER BY l.id`,
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(
			&line.ID, &line.ProductID, &line.VariantID, &line.Quantity,
			&line.AddressID, &line.CustomizationID,
			&line.Address.CountryID, &line.Address.StateID, &line.Address.Zip,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Gifts loads the promotional gift quantities attached to the cart.
func (s *Service) Gifts(ctx context.Context, cartID int64) ([]Gift, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT product_id, variant_id, quantity
		FROM cart_gifts
		WHERE cart_id = $1`,
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("list cart gifts: %w", err)
	}
	defer rows.Close()

	var gifts []Gift
	for rows.Next() {
		var g Gift
		if err := rows.Scan(&g.ProductID, &g.VariantID, &g.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart gift: %w", err)
		}
		gifts = append(gifts, g)
	}
	return gifts, rows.Err()
}

// InvoiceAddress resolves the cart's invoice address for tax purposes.
// A cart without one yields the zero address.
func (s *Service) InvoiceAddress(ctx context.Context, addressID int64) (tax.Address, error) {
	if addressID == 0 {
		return tax.Address{}, nil
	}
	var addr tax.Address
	err := s.Pool.QueryRow(ctx, `
		SELECT country_id, state_id, COALESCE(zip, '')
		FROM addresses
		WHERE id = $1`,
		addressID,
	).Scan(&addr.CountryID, &addr.StateID, &addr.Zip)
	if errors.Is(err, pgx.ErrNoRows) {
		return tax.Address{}, nil
	}
	if err != nil {
		return tax.Address{}, fmt.Errorf("load invoice address: %w", err)
	}
	return addr, nil
}

func (s *Service) touch(ctx context.Context, cartID int64) {
	_, _ = s.Pool.Exec(ctx, `UPDATE carts SET updated_at = $2 WHERE id = $1`, cartID, s.now())
}
