package variant

import (
	"context"
	"errors"
	"fmt"

	"github.com/pointbarre/quoteapi/internal/dimension"
)

// ErrUnknownVariant is returned when an id decodes outside the configured
// dimension grid.
var ErrUnknownVariant = errors.New("unknown variant")

// Attribute is one axis value of a variant.
type Attribute struct {
	ID        int64  `json:"id"`
	GroupID   int64  `json:"group_id"`
	GroupName string `json:"group_name"`
	Name      string `json:"name"`
}

// Variant is one cell of the room x VAT grid.
type Variant struct {
	ID              int64       `json:"id"`
	Room            int         `json:"room"`
	Vat             int         `json:"vat"`
	TaxRulesGroupID int64       `json:"tax_rules_group_id"`
	Designation     string      `json:"designation"`
	Default         bool        `json:"default"`
	Attributes      []Attribute `json:"attributes"`
}

// Group describes one of the two synthetic attribute groups.
type Group struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PublicName string `json:"public_name"`
	Position   int    `json:"position"`
	IsColor    bool   `json:"is_color_group"`
}

// Groups returns the fixed attribute-group metadata, room first.
func Groups() []Group {
	return []Group{
		{ID: dimension.Room.GroupID(), Name: dimension.Room.Name(), PublicName: dimension.Room.PublicName(), Position: 0},
		{ID: dimension.Vat.GroupID(), Name: dimension.Vat.Name(), PublicName: dimension.Vat.PublicName(), Position: 1},
	}
}

// Catalog materialises variants from the configured dimensions. Every
// product shares the same grid, so the catalog carries no product state.
type Catalog struct {
	Dims dimension.Source
}

// List enumerates the full grid in room-major order.
func (c *Catalog) List(ctx context.Context) ([]Variant, error) {
	rooms, vats, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	variants := make([]Variant, 0, len(rooms)*len(vats))
	for r := range rooms {
		for v := range vats {
			variants = append(variants, build(rooms, vats, r, v))
		}
	}
	return variants, nil
}

// Get resolves a variant id, normalising legacy sentinel values first.
func (c *Catalog) Get(ctx context.Context, id int64) (Variant, error) {
	rooms, vats, err := c.load(ctx)
	if err != nil {
		return Variant{}, err
	}
	room, vat := Decode(id)
	if room < 0 || room >= len(rooms) || vat < 0 || vat >= len(vats) {
		return Variant{}, fmt.Errorf("id %d: %w", id, ErrUnknownVariant)
	}
	return build(rooms, vats, room, vat), nil
}

// Default returns the first variant of the grid.
func (c *Catalog) Default(ctx context.Context) (Variant, error) {
	return c.Get(ctx, Base)
}

// Count reports the grid cardinality.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	rooms, vats, err := c.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(rooms) * len(vats), nil
}

// HasVariants reports whether the dimensions produce at least one cell.
func (c *Catalog) HasVariants(ctx context.Context) (bool, error) {
	count, err := c.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Name renders the display suffix appended to a product name for one
// variant, e.g. " : Pièce - Cuisine, TVA - 10".
func (c *Catalog) Name(ctx context.Context, id int64) (string, error) {
	v, err := c.Get(ctx, id)
	if err != nil {
		return "", err
	}
	name := " : "
	for i, attr := range v.Attributes {
		if i > 0 {
			name += ", "
		}
		name += attr.GroupName + " - " + attr.Name
	}
	return name, nil
}

func (c *Catalog) load(ctx context.Context) ([]string, []dimension.VATEntry, error) {
	rooms, err := c.Dims.Rooms(ctx)
	if err != nil {
		return nil, nil, err
	}
	vats, err := c.Dims.VATs(ctx)
	if err != nil {
		return nil, nil, err
	}
	return rooms, vats, nil
}

func build(rooms []string, vats []dimension.VATEntry, room, vat int) Variant {
	entry := vats[vat]
	return Variant{
		ID:              Encode(room, vat),
		Room:            room,
		Vat:             vat,
		TaxRulesGroupID: entry.TaxRulesGroupID,
		Designation:     rooms[room] + " - " + entry.Label,
		Default:         room == 0 && vat == 0,
		Attributes: []Attribute{
			{
				ID:        RoomAttributeID(room),
				GroupID:   dimension.Room.GroupID(),
				GroupName: dimension.Room.PublicName(),
				Name:      rooms[room],
			},
			{
				ID:        VatAttributeID(vat),
				GroupID:   dimension.Vat.GroupID(),
				GroupName: dimension.Vat.PublicName(),
				Name:      entry.Label,
			},
		},
	}
}
