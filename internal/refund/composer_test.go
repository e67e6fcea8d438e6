package refund

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/pointbarre/quoteapi/internal/pricing"
	"github.com/pointbarre/quoteapi/internal/tax"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubTaxes struct {
	groups map[int64]int64           // product id to tax-rules group
	rates  map[int64]decimal.Decimal // group to percentage rate
	addrs  []tax.Address
	err    error
}

func (s *stubTaxes) GroupFor(_ context.Context, productID, _, _ int64) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.groups[productID], nil
}

func (s *stubTaxes) CalculatorFor(_ context.Context, group int64, addr tax.Address) (tax.Calculator, error) {
	if s.err != nil {
		return tax.Calculator{}, s.err
	}
	s.addrs = append(s.addrs, addr)
	return tax.NewCalculator(s.rates[group]), nil
}

func testTaxes() *stubTaxes {
	return &stubTaxes{
		groups: map[int64]int64{7: 2, 8: 1},
		rates:  map[int64]decimal.Decimal{2: dec("20"), 1: dec("10")},
	}
}

func testComposer(taxes *stubTaxes) Composer {
	return Composer{Taxes: taxes, Precision: 2}
}

func testOrder(mode pricing.RoundMode) Order {
	return Order{
		ID:                      41,
		ShopID:                  1,
		CurrencyID:              1,
		Round:                   mode,
		InvoiceAddress:          tax.Address{CountryID: 8, Zip: "75001"},
		DeliveryAddress:         tax.Address{CountryID: 8, Zip: "69001"},
		ShippingTaxExcl:         dec("5"),
		ShippingTaxIncl:         dec("6"),
		ShippingTaxRulesGroupID: 2,
		Lines: []OrderLine{
			{
				ID: 1, ProductID: 7, VariantID: 1011, Quantity: 3,
				UnitPriceTaxExcl: dec("9.995"), UnitPriceTaxIncl: dec("11.994"),
				AddressID: 4,
			},
			{
				ID: 2, ProductID: 8, VariantID: 1012, Quantity: 2,
				UnitPriceTaxExcl: dec("5"), UnitPriceTaxIncl: dec("5.5"),
				AddressID: 4,
			},
		},
	}
}

func TestComposeLineRounding(t *testing.T) {
	c := testComposer(testTaxes())
	note, err := c.Compose(context.Background(), testOrder(pricing.RoundLine), Request{Quantities: map[int64]int{1: 3}})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	// The tax-exclusive side is recomputed from 11.994 at 20%:
	// 9.995 * 3 = 29.985, rounded once per line to 29.99.
	if !note.Lines[0].AmountTaxExcl.Equal(dec("29.99")) {
		t.Fatalf("line excl = %s, want 29.99", note.Lines[0].AmountTaxExcl)
	}
	if !note.Lines[0].AmountTaxIncl.Equal(dec("35.98")) {
		t.Fatalf("line incl = %s, want 35.98", note.Lines[0].AmountTaxIncl)
	}
	if !note.TotalTaxExcl.Equal(dec("29.99")) {
		t.Fatalf("total = %s, want 29.99", note.TotalTaxExcl)
	}
	if note.Kind != KindPartial {
		t.Fatalf("kind = %s, want partial", note.Kind)
	}
	if note.Direction != DirectionRefund {
		t.Fatalf("direction = %s, want refund", note.Direction)
	}
}

func TestComposeItemRoundingDiffersFromLine(t *testing.T) {
	c := testComposer(testTaxes())
	req := Request{Quantities: map[int64]int{1: 3}}

	item, err := c.Compose(context.Background(), testOrder(pricing.RoundItem), req)
	if err != nil {
		t.Fatalf("compose item: %v", err)
	}
	// Each unit rounds 9.995 up to 10.00 first.
	if !item.Lines[0].AmountTaxExcl.Equal(dec("30")) {
		t.Fatalf("item amount = %s, want 30", item.Lines[0].AmountTaxExcl)
	}

	line, err := c.Compose(context.Background(), testOrder(pricing.RoundLine), req)
	if err != nil {
		t.Fatalf("compose line: %v", err)
	}
	diff := item.Lines[0].AmountTaxExcl.Sub(line.Lines[0].AmountTaxExcl)
	if !diff.Equal(dec("0.01")) {
		t.Fatalf("item-line discrepancy = %s, want exactly 0.01", diff)
	}
}

func TestComposeTotalRoundingBucketsPerGroupAndAddress(t *testing.T) {
	c := testComposer(testTaxes())
	note, err := c.Compose(context.Background(), testOrder(pricing.RoundTotal), Request{Quantities: map[int64]int{1: 3, 2: 2}})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(note.Taxes) != 2 {
		t.Fatalf("expected 2 tax buckets, got %d", len(note.Taxes))
	}
	for _, b := range note.Taxes {
		if b.AddressID != 4 {
			t.Fatalf("bucket %q missing address id", b.Key)
		}
	}
	// Group 2: raw incl 35.982 rounds to 35.98, excl round(29.985)=29.99.
	// Group 1: incl 11, excl 10.
	if !note.TotalTaxExcl.Equal(dec("39.99")) {
		t.Fatalf("total excl = %s, want 39.99", note.TotalTaxExcl)
	}
	if !note.TotalTaxIncl.Equal(dec("46.98")) {
		t.Fatalf("total incl = %s, want 46.98", note.TotalTaxIncl)
	}
	if note.Kind != KindFull {
		t.Fatalf("kind = %s, want full", note.Kind)
	}
}

func TestComposeResolvesLineTaxAtInvoiceAddress(t *testing.T) {
	taxes := testTaxes()
	c := testComposer(taxes)
	order := testOrder(pricing.RoundLine)

	if _, err := c.Compose(context.Background(), order, Request{Quantities: map[int64]int{1: 1}}); err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(taxes.addrs) != 1 || taxes.addrs[0] != order.InvoiceAddress {
		t.Fatalf("line calculator built for %+v, want invoice address %+v", taxes.addrs, order.InvoiceAddress)
	}
}

func TestComposeChargeDirectionAddsTaxes(t *testing.T) {
	c := testComposer(testTaxes())
	note, err := c.Compose(context.Background(), testOrder(pricing.RoundLine), Request{
		Quantities: map[int64]int{2: 2},
		Direction:  DirectionCharge,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	// The tax-exclusive price 5 is authoritative; 10% is added back on.
	if !note.Lines[0].AmountTaxExcl.Equal(dec("10")) {
		t.Fatalf("line excl = %s, want 10", note.Lines[0].AmountTaxExcl)
	}
	if !note.Lines[0].AmountTaxIncl.Equal(dec("11")) {
		t.Fatalf("line incl = %s, want 11", note.Lines[0].AmountTaxIncl)
	}
	if note.Direction != DirectionCharge {
		t.Fatalf("direction = %s, want charge", note.Direction)
	}
}

func TestComposeShippingRefund(t *testing.T) {
	taxes := testTaxes()
	c := testComposer(taxes)
	order := testOrder(pricing.RoundLine)

	note, err := c.Compose(context.Background(), order, Request{
		Quantities: map[int64]int{1: 3},
		Shipping:   true,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !note.ShippingRefunded {
		t.Fatal("shipping not flagged as refunded")
	}
	// Full shipping: the charged 6.00 incl, excl recomputed at 20%.
	if !note.ShippingTaxIncl.Equal(dec("6")) {
		t.Fatalf("shipping incl = %s, want 6", note.ShippingTaxIncl)
	}
	if !note.ShippingTaxExcl.Equal(dec("5")) {
		t.Fatalf("shipping excl = %s, want 5", note.ShippingTaxExcl)
	}
	if note.Kind != KindCustom {
		t.Fatalf("kind = %s, want custom", note.Kind)
	}
	last := taxes.addrs[len(taxes.addrs)-1]
	if last != order.DeliveryAddress {
		t.Fatalf("shipping calculator built for %+v, want delivery address %+v", last, order.DeliveryAddress)
	}
}

func TestComposeShippingOnlyWithCustomAmount(t *testing.T) {
	c := testComposer(testTaxes())
	amount := dec("3")
	note, err := c.Compose(context.Background(), testOrder(pricing.RoundLine), Request{
		Shipping:       true,
		ShippingAmount: &amount,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(note.Lines) != 0 {
		t.Fatalf("expected no product lines, got %d", len(note.Lines))
	}
	if !note.ShippingTaxIncl.Equal(dec("3")) {
		t.Fatalf("shipping incl = %s, want 3", note.ShippingTaxIncl)
	}
	if !note.ShippingTaxExcl.Equal(dec("2.5")) {
		t.Fatalf("shipping excl = %s, want 2.5", note.ShippingTaxExcl)
	}
	if !note.TotalTaxExcl.IsZero() || !note.TotalTaxIncl.IsZero() {
		t.Fatalf("product totals = %s/%s, want zero", note.TotalTaxExcl, note.TotalTaxIncl)
	}
}

func TestComposeShippingWithoutTaxGroupPassesThrough(t *testing.T) {
	c := testComposer(testTaxes())
	order := testOrder(pricing.RoundLine)
	order.ShippingTaxRulesGroupID = 0

	note, err := c.Compose(context.Background(), order, Request{Shipping: true})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !note.ShippingTaxExcl.Equal(note.ShippingTaxIncl) {
		t.Fatalf("untaxed shipping differs: %s vs %s", note.ShippingTaxExcl, note.ShippingTaxIncl)
	}
}

func TestComposeAmountDeducted(t *testing.T) {
	c := testComposer(testTaxes())
	note, err := c.Compose(context.Background(), testOrder(pricing.RoundLine), Request{
		Quantities: map[int64]int{1: 3},
		Amount:     dec("5"),
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !note.TotalTaxExcl.Equal(dec("24.99")) {
		t.Fatalf("total excl = %s, want 29.99 - 5 = 24.99", note.TotalTaxExcl)
	}
	// The recorded amount stays the tax-inclusive product total.
	if !note.Amount.Equal(dec("35.98")) {
		t.Fatalf("amount = %s, want 35.98", note.Amount)
	}
	if note.Kind != KindPartial {
		t.Fatalf("kind = %s, want partial", note.Kind)
	}
}

func TestComposeAmountChosen(t *testing.T) {
	c := testComposer(testTaxes())
	note, err := c.Compose(context.Background(), testOrder(pricing.RoundLine), Request{
		Quantities:   map[int64]int{1: 3},
		Amount:       dec("20"),
		AmountChosen: true,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !note.TotalTaxExcl.Equal(dec("29.99")) {
		t.Fatalf("total excl = %s, chosen amount must not deduct", note.TotalTaxExcl)
	}
	if !note.Amount.Equal(dec("20")) {
		t.Fatalf("amount = %s, want 20", note.Amount)
	}
	if note.Kind != KindCustom {
		t.Fatalf("kind = %s, want custom", note.Kind)
	}
}

func TestComposeClampsToRefundable(t *testing.T) {
	c := testComposer(testTaxes())
	order := testOrder(pricing.RoundLine)
	order.Lines[0].RefundedQuantity = 2

	note, err := c.Compose(context.Background(), order, Request{Quantities: map[int64]int{1: 5}})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if note.Lines[0].Quantity != 1 {
		t.Fatalf("quantity = %d, want clamp to 1", note.Lines[0].Quantity)
	}
}

func TestComposeNothingToRefund(t *testing.T) {
	c := testComposer(testTaxes())
	order := testOrder(pricing.RoundLine)
	order.Lines[0].RefundedQuantity = 3
	order.Lines[1].RefundedQuantity = 2

	if _, err := c.Compose(context.Background(), order, Request{Quantities: map[int64]int{1: 1}}); !errors.Is(err, ErrNothingToRefund) {
		t.Fatalf("expected ErrNothingToRefund, got %v", err)
	}
}

func TestComposeUnknownLine(t *testing.T) {
	c := testComposer(testTaxes())
	if _, err := c.Compose(context.Background(), testOrder(pricing.RoundLine), Request{Quantities: map[int64]int{99: 1}}); !errors.Is(err, ErrUnknownOrderLine) {
		t.Fatalf("expected ErrUnknownOrderLine, got %v", err)
	}
}

func TestComposeTaxErrorAborts(t *testing.T) {
	boom := errors.New("rates unavailable")
	c := testComposer(&stubTaxes{err: boom})
	if _, err := c.Compose(context.Background(), testOrder(pricing.RoundLine), Request{Quantities: map[int64]int{1: 1}}); !errors.Is(err, boom) {
		t.Fatalf("expected tax error to propagate, got %v", err)
	}
}
