package cart

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/pointbarre/quoteapi/internal/dimension"
	"github.com/pointbarre/quoteapi/internal/pricing"
	"github.com/pointbarre/quoteapi/internal/tax"
	"github.com/pointbarre/quoteapi/internal/variant"
)

type staticProducts map[int64]pricing.BasePrice

func (s staticProducts) BasePrice(_ context.Context, productID, _ int64) (pricing.BasePrice, error) {
	bp, ok := s[productID]
	if !ok {
		return pricing.BasePrice{}, errors.New("product not found")
	}
	return bp, nil
}

func testAdapter(products staticProducts, mode pricing.RoundMode) *Adapter {
	dims := dimension.StaticSource{
		RoomNames: []string{"Cuisine", "Salon"},
		VATEntries: []dimension.VATEntry{
			{Index: 0, Label: "2", TaxRulesGroupID: 2, RateLabel: "20"},
			{Index: 1, Label: "1", TaxRulesGroupID: 1, RateLabel: "10"},
		},
	}
	return &Adapter{
		Engine: &pricing.Engine{
			Products: products,
			Taxes: &tax.Resolver{
				Catalog: &variant.Catalog{Dims: dims},
				Rates:   tax.DimensionRates{Dims: dims},
				Groups:  tax.NewGroupCache(),
			},
			Cache:     pricing.NewCache(),
			BaseCache: pricing.NewBaseCache(),
		},
		Round:     mode,
		Precision: 2,
	}
}

func TestUniqueLineID(t *testing.T) {
	got := UniqueLineID(7, 1012, 4, 9)
	want := "00000000070000001012" + "4" + "9"
	if got != want {
		t.Fatalf("unique id = %q, want %q", got, want)
	}
}

func TestPriceLinesLineRounding(t *testing.T) {
	a := testAdapter(staticProducts{7: {Price: decimal.RequireFromString("3.333")}}, pricing.RoundLine)
	lines := []Line{{ID: 1, ProductID: 7, VariantID: 1011, Quantity: 3}}

	priced, totals, err := a.PriceLines(context.Background(), PriceContext{}, lines, nil)
	if err != nil {
		t.Fatalf("price lines: %v", err)
	}
	if len(priced) != 1 {
		t.Fatalf("expected 1 line, got %d", len(priced))
	}
	// 3.333 * 3 = 9.999, rounded once per line.
	if !priced[0].Total.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("line total = %s, want 10", priced[0].Total)
	}
	if !totals.TaxExcl.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("cart total = %s, want 10", totals.TaxExcl)
	}
	if priced[0].TaxRulesGroupID != 2 {
		t.Fatalf("tax rules group = %d, want 2", priced[0].TaxRulesGroupID)
	}
}

func TestPriceLinesItemRounding(t *testing.T) {
	a := testAdapter(staticProducts{7: {Price: decimal.RequireFromString("3.333")}}, pricing.RoundItem)
	lines := []Line{{ID: 1, ProductID: 7, VariantID: 1011, Quantity: 3}}

	priced, totals, err := a.PriceLines(context.Background(), PriceContext{}, lines, nil)
	if err != nil {
		t.Fatalf("price lines: %v", err)
	}
	// Each unit rounds to 3.33 before multiplying.
	want := decimal.RequireFromString("9.99")
	if !priced[0].Total.Equal(want) {
		t.Fatalf("line total = %s, want %s", priced[0].Total, want)
	}
	if !totals.TaxExcl.Equal(want) {
		t.Fatalf("cart total = %s, want %s", totals.TaxExcl, want)
	}
}

func TestPriceLinesTotalRoundingPerGroup(t *testing.T) {
	a := testAdapter(staticProducts{
		7: {Price: decimal.RequireFromString("3.333")},
		8: {Price: decimal.RequireFromString("2.221")},
	}, pricing.RoundTotal)
	lines := []Line{
		{ID: 1, ProductID: 7, VariantID: 1011, Quantity: 3},
		{ID: 2, ProductID: 8, VariantID: 1012, Quantity: 2},
	}

	priced, totals, err := a.PriceLines(context.Background(), PriceContext{}, lines, nil)
	if err != nil {
		t.Fatalf("price lines: %v", err)
	}
	// Lines stay unrounded; each tax group's sum rounds once.
	if !priced[0].Total.Equal(decimal.RequireFromString("9.999")) {
		t.Fatalf("line 1 total = %s, want 9.999", priced[0].Total)
	}
	// round(9.999) + round(4.442) = 10.00 + 4.44.
	want := decimal.RequireFromString("14.44")
	if !totals.TaxExcl.Equal(want) {
		t.Fatalf("cart total = %s, want %s", totals.TaxExcl, want)
	}
}

func TestPriceLinesGiftSplit(t *testing.T) {
	a := testAdapter(staticProducts{7: {Price: decimal.NewFromInt(100)}}, pricing.RoundLine)
	lines := []Line{{ID: 1, ProductID: 7, VariantID: 1011, Quantity: 5}}
	gifts := []Gift{{ProductID: 7, VariantID: 1011, Quantity: 2}}

	priced, totals, err := a.PriceLines(context.Background(), PriceContext{}, lines, gifts)
	if err != nil {
		t.Fatalf("price lines: %v", err)
	}
	if len(priced) != 2 {
		t.Fatalf("expected split into 2 lines, got %d", len(priced))
	}
	paid, gift := priced[0], priced[1]
	if gift.Gift == paid.Gift {
		t.Fatalf("expected exactly one gift line")
	}
	if !gift.Gift {
		paid, gift = gift, paid
	}
	if paid.Quantity+gift.Quantity != 5 {
		t.Fatalf("quantities %d+%d do not conserve the original 5", paid.Quantity, gift.Quantity)
	}
	if gift.Quantity != 2 {
		t.Fatalf("gift quantity = %d, want 2", gift.Quantity)
	}
	if !gift.Total.IsZero() || !gift.TotalWT.IsZero() {
		t.Fatalf("gift line must be free, got %s / %s", gift.Total, gift.TotalWT)
	}
	if !paid.Total.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("paid line total = %s, want 300", paid.Total)
	}
	if !totals.TaxExcl.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("cart total = %s, want 300", totals.TaxExcl)
	}
}

func TestPriceLinesGiftCoversWholeLine(t *testing.T) {
	a := testAdapter(staticProducts{7: {Price: decimal.NewFromInt(50)}}, pricing.RoundLine)
	lines := []Line{{ID: 1, ProductID: 7, VariantID: 1011, Quantity: 2}}
	gifts := []Gift{{ProductID: 7, VariantID: 1011, Quantity: 4}}

	priced, totals, err := a.PriceLines(context.Background(), PriceContext{}, lines, gifts)
	if err != nil {
		t.Fatalf("price lines: %v", err)
	}
	if len(priced) != 1 {
		t.Fatalf("expected a single all-gift line, got %d", len(priced))
	}
	if !priced[0].Gift || priced[0].Quantity != 2 {
		t.Fatalf("expected gift line of quantity 2, got gift=%v qty=%d", priced[0].Gift, priced[0].Quantity)
	}
	if !totals.TaxIncl.IsZero() {
		t.Fatalf("cart total = %s, want 0", totals.TaxIncl)
	}
}

func TestGiftSplitConservesQuantities(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		qty := 1 + rng.Intn(50)
		giftQty := 1 + rng.Intn(50)
		lines := []Line{{ID: 1, ProductID: 7, VariantID: 1011, Quantity: qty}}
		gifts := []Gift{{ProductID: 7, VariantID: 1011, Quantity: giftQty}}

		var total, gifted int
		for _, entry := range splitGifts(lines, gifts) {
			if entry.line.Quantity <= 0 {
				t.Fatalf("qty=%d gift=%d: produced non-positive quantity %d", qty, giftQty, entry.line.Quantity)
			}
			total += entry.line.Quantity
			if entry.gift {
				gifted += entry.line.Quantity
			}
		}
		if total != qty {
			t.Fatalf("qty=%d gift=%d: split quantities sum to %d", qty, giftQty, total)
		}
		wantGift := giftQty
		if wantGift > qty {
			wantGift = qty
		}
		if gifted != wantGift {
			t.Fatalf("qty=%d gift=%d: gifted %d, want %d", qty, giftQty, gifted, wantGift)
		}
	}
}

func TestPriceLinesInvoiceAddressFallback(t *testing.T) {
	a := testAdapter(staticProducts{7: {Price: decimal.NewFromInt(100)}}, pricing.RoundLine)
	pc := PriceContext{InvoiceAddressID: 12, Invoice: tax.Address{CountryID: 8}}
	lines := []Line{{ID: 1, ProductID: 7, VariantID: 1011, Quantity: 1}}

	priced, _, err := a.PriceLines(context.Background(), pc, lines, nil)
	if err != nil {
		t.Fatalf("price lines: %v", err)
	}
	if priced[0].AddressID != 12 {
		t.Fatalf("address id = %d, want invoice fallback 12", priced[0].AddressID)
	}
	if priced[0].UniqueID != UniqueLineID(7, 1011, 12, 0) {
		t.Fatalf("unique id %q does not carry the invoice address", priced[0].UniqueID)
	}
}
