package variant

import (
	"context"
	"errors"
	"testing"

	"github.com/pointbarre/quoteapi/internal/dimension"
)

func testCatalog() *Catalog {
	return &Catalog{Dims: dimension.StaticSource{
		RoomNames: []string{"Cuisine", "Salon"},
		VATEntries: []dimension.VATEntry{
			{Index: 0, Label: "2", TaxRulesGroupID: 2, RateLabel: "10"},
			{Index: 1, Label: "1", TaxRulesGroupID: 1, RateLabel: "20"},
		},
	}}
}

func TestCatalogListCardinality(t *testing.T) {
	variants, err := testCatalog().List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(variants) != 4 {
		t.Fatalf("expected 2x2 grid, got %d variants", len(variants))
	}
	wantIDs := []int64{1011, 1012, 1021, 1022}
	for i, v := range variants {
		if v.ID != wantIDs[i] {
			t.Fatalf("variant %d: expected id %d, got %d", i, wantIDs[i], v.ID)
		}
		if v.Default != (v.ID == 1011) {
			t.Fatalf("variant %d: unexpected default flag %v", v.ID, v.Default)
		}
	}
	count, err := testCatalog().Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != len(variants) {
		t.Fatalf("count %d does not match list length %d", count, len(variants))
	}
}

func TestGroupsMetadata(t *testing.T) {
	groups := Groups()
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].ID != 2 || groups[0].Name != "room" || groups[0].Position != 0 || groups[0].IsColor {
		t.Fatalf("unexpected room group: %+v", groups[0])
	}
	if groups[1].ID != 3 || groups[1].Name != "vat" || groups[1].Position != 1 || groups[1].IsColor {
		t.Fatalf("unexpected vat group: %+v", groups[1])
	}
}

func TestCatalogGet(t *testing.T) {
	v, err := testCatalog().Get(context.Background(), 1022)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.Room != 1 || v.Vat != 1 {
		t.Fatalf("expected (1,1), got (%d,%d)", v.Room, v.Vat)
	}
	if v.TaxRulesGroupID != 1 {
		t.Fatalf("expected tax rules group 1, got %d", v.TaxRulesGroupID)
	}
	if v.Designation != "Salon - 1" {
		t.Fatalf("unexpected designation %q", v.Designation)
	}
	if len(v.Attributes) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(v.Attributes))
	}
	room, vat := v.Attributes[0], v.Attributes[1]
	if room.ID != 20 || room.GroupID != 2 || room.GroupName != "Pièce" || room.Name != "Salon" {
		t.Fatalf("unexpected room attribute: %+v", room)
	}
	if vat.ID != 2 || vat.GroupID != 3 || vat.GroupName != "TVA" || vat.Name != "1" {
		t.Fatalf("unexpected vat attribute: %+v", vat)
	}
}

func TestCatalogGetNormalisesSentinel(t *testing.T) {
	v, err := testCatalog().Get(context.Background(), 0)
	if err != nil {
		t.Fatalf("get sentinel: %v", err)
	}
	if v.ID != Base {
		t.Fatalf("expected default variant %d, got %d", Base, v.ID)
	}
}

func TestCatalogGetOutOfRange(t *testing.T) {
	if _, err := testCatalog().Get(context.Background(), 1099); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
	if _, err := testCatalog().Get(context.Background(), 1051); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant for room overflow, got %v", err)
	}
}

func TestCatalogDefault(t *testing.T) {
	v, err := testCatalog().Default(context.Background())
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if v.ID != 1011 || v.Room != 0 || v.Vat != 0 {
		t.Fatalf("unexpected default variant: %+v", v)
	}
}

func TestCatalogName(t *testing.T) {
	name, err := testCatalog().Name(context.Background(), 1012)
	if err != nil {
		t.Fatalf("name: %v", err)
	}
	want := " : Pièce - Cuisine, TVA - 1"
	if name != want {
		t.Fatalf("expected %q, got %q", want, name)
	}
	if _, err := testCatalog().Name(context.Background(), 1099); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestCatalogHasVariants(t *testing.T) {
	has, err := testCatalog().HasVariants(context.Background())
	if err != nil {
		t.Fatalf("has variants: %v", err)
	}
	if !has {
		t.Fatal("expected a configured grid to report variants")
	}
}
