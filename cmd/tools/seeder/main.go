// Command seeder applies the schema and loads a small demo dataset:
// dimension settings, a couple of products with shop prices, tax
// rules for the VAT dimension, a promo rule and a refundable order.
package main

import (
	"context"
	_ "embed"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

//go:embed schema.sql
var schemaSQL string

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	log.Println("Schema applied")

	if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		seedSettings(ctx, tx)
		seedCatalog(ctx, tx)
		seedTaxRules(ctx, tx)
		seedAddresses(ctx, tx)
		seedPromoRules(ctx, tx)
		seedDemoOrder(ctx, tx)
		return nil
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Seeding completed successfully!")
}

func seedSettings(ctx context.Context, tx pgx.Tx) {
	settings := map[string]string{
		"ROOMS":      "Kitchen, Bathroom, Living room",
		"VAT":        "1:20, 2:10, 3:5.5",
		"ROUND_TYPE": "line",
	}
	for key, value := range settings {
		mustExec(ctx, tx, `
			INSERT INTO settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			key, value)
	}
	log.Println("Seeded settings")
}

func seedCatalog(ctx context.Context, tx pgx.Tx) {
	type product struct {
		id     int64
		name   string
		ref    string
		weight float64
		price  float64
		ecotax float64
		stock  int
	}
	products := []product{
		{1, "Renovation quote", "QUOTE-STD", 0, 100.00, 0, 9999},
		{2, "Premium renovation quote", "QUOTE-PRM", 0, 250.00, 2.50, 9999},
	}
	for _, p := range products {
		mustExec(ctx, tx, `
			INSERT INTO products (id, name, reference, weight, category_id)
			VALUES ($1, $2, $3, $4, 1)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, reference = EXCLUDED.reference`,
			p.id, p.name, p.ref, p.weight)
		mustExec(ctx, tx, `
			INSERT INTO product_shop (product_id, shop_id, price, ecotax)
			VALUES ($1, 1, $2, $3)
			ON CONFLICT (product_id, shop_id) DO UPDATE SET price = EXCLUDED.price, ecotax = EXCLUDED.ecotax`,
			p.id, p.price, p.ecotax)
		mustExec(ctx, tx, `
			INSERT INTO stock_available (product_id, quantity)
			VALUES ($1, $2)
			ON CONFLICT (product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
			p.id, p.stock)
	}

	mustExec(ctx, tx, `
		INSERT INTO currencies (id, conversion_rate) VALUES (1, 1)
		ON CONFLICT (id) DO UPDATE SET conversion_rate = EXCLUDED.conversion_rate`)
	mustExec(ctx, tx, `
		INSERT INTO customer_groups (id, reduction_percent) VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING`)

	// 10% off product 2 from 5 units.
	mustExec(ctx, tx, `
		INSERT INTO specific_prices (product_id, from_quantity, reduction, reduction_type, reduction_tax)
		SELECT 2, 5, 0.10, 'percentage', true
		WHERE NOT EXISTS (SELECT 1 FROM specific_prices WHERE product_id = 2 AND from_quantity = 5)`)

	log.Println("Seeded catalog")
}

func seedTaxRules(ctx context.Context, tx pgx.Tx) {
	// One rule per VAT dimension group, country-agnostic. Group 1 is
	// the standard rate, 2 and 3 the reduced ones.
	rules := []struct {
		group int64
		rate  float64
	}{
		{1, 20}, {2, 10}, {3, 5.5},
	}
	for _, r := range rules {
		mustExec(ctx, tx, `
			INSERT INTO tax_rules (tax_rules_group_id, country_id, state_id, zip_prefix, rate)
			SELECT $1, 0, 0, '', $2
			WHERE NOT EXISTS (
				SELECT 1 FROM tax_rules
				WHERE tax_rules_group_id = $1 AND country_id = 0 AND state_id = 0 AND zip_prefix = ''
			)`,
			r.group, r.rate)
	}
	log.Println("Seeded tax rules")
}

func seedAddresses(ctx context.Context, tx pgx.Tx) {
	mustExec(ctx, tx, `
		INSERT INTO addresses (id, country_id, state_id, zip)
		VALUES (1, 8, 0, '75001')
		ON CONFLICT (id) DO NOTHING`)
	log.Println("Seeded addresses")
}

func seedPromoRules(ctx context.Context, tx pgx.Tx) {
	mustExec(ctx, tx, `
		INSERT INTO promo_rules (name, product_id, variant_id, min_quantity, gift_quantity, repeat_grant)
		SELECT 'Buy 3 get 1 free', 1, 0, 3, 1, true
		WHERE NOT EXISTS (SELECT 1 FROM promo_rules WHERE name = 'Buy 3 get 1 free')`)
	log.Println("Seeded promo rules")
}

func seedDemoOrder(ctx context.Context, tx pgx.Tx) {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = 1)`).Scan(&exists); err != nil {
		log.Fatalf("Failed to check demo order: %v", err)
	}
	if exists {
		return
	}
	mustExec(ctx, tx, `
		INSERT INTO orders (id, shop_id, currency_id, round_type,
			invoice_address_id, delivery_address_id,
			total_shipping_tax_excl, total_shipping_tax_incl, shipping_tax_rules_group_id)
		VALUES (1, 1, 1, 'line', 1, 1, 5.00, 6.00, 1)`)
	mustExec(ctx, tx, `
		INSERT INTO order_lines (order_id, product_id, variant_id, quantity,
			unit_price_tax_excl, unit_price_tax_incl, tax_rules_group_id, tax_rate, address_id)
		VALUES
			(1, 1, 1021, 3, 100.00, 120.00, 1, 20, 1),
			(1, 2, 1032, 2, 250.00, 275.00, 2, 10, 1)`)
	log.Println("Seeded demo order")
}

func mustExec(ctx context.Context, tx pgx.Tx, sql string, args ...any) {
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		log.Fatalf("Failed to exec %q: %v", firstLine(sql), err)
	}
}

func firstLine(sql string) string {
	return strings.SplitN(strings.TrimSpace(sql), "\n", 2)[0]
}
