package dimension

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies one of the two configurable product dimensions.
type Kind int

const (
	// Room is the physical-room dimension of a product.
	Room Kind = iota
	// Vat is the tax-regime dimension of a product.
	Vat
)

// Legacy attribute-group identifiers kept on outbound payloads so that
// downstream consumers keyed on the historical ids keep working.
const (
	RoomGroupID int64 = 2
	VatGroupID  int64 = 3
)

// ErrEmptyDimension is returned when a dimension has no configured entries.
var ErrEmptyDimension = errors.New("dimension has no entries")

// Name returns the machine name of the dimension.
func (k Kind) Name() string {
	if k == Vat {
		return "vat"
	}
	return "room"
}

// PublicName returns the customer-facing label of the dimension.
func (k Kind) PublicName() string {
	if k == Vat {
		return "TVA"
	}
	return "Pièce"
}

// GroupID returns the legacy attribute-group id emitted on records.
func (k Kind) GroupID() int64 {
	if k == Vat {
		return VatGroupID
	}
	return RoomGroupID
}

// VATEntry is one parsed token of the VAT dimension. Label doubles as the
// tax-rules-group reference: the configured token "2:10" yields Label "2",
// TaxRulesGroupID 2 and RateLabel "10".
type VATEntry struct {
	Index           int
	Label           string
	TaxRulesGroupID int64
	RateLabel       string
}

// ParseRooms splits a comma-separated room list into trimmed names.
// Blank segments are dropped.
func ParseRooms(raw string) ([]string, error) {
	var rooms []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		rooms = append(rooms, name)
	}
	if len(rooms) == 0 {
		return nil, fmt.Errorf("rooms: %w", ErrEmptyDimension)
	}
	return rooms, nil
}

// ParseVATs splits a comma-separated list of "group:rate" tokens.
// The variant codec reserves a single decimal digit for this dimension,
// so configurations beyond nine entries produce colliding identifiers;
// that limit is documented rather than enforced here.
func ParseVATs(raw string) ([]VATEntry, error) {
	var entries []VATEntry
	for _, part := range strings.Split(raw, ",") {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		label, rate, _ := strings.Cut(token, ":")
		label = strings.TrimSpace(label)
		rate = strings.TrimSpace(rate)
		if label == "" {
			return nil, fmt.Errorf("vats: malformed token %q", token)
		}
		groupID, err := strconv.ParseInt(label, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("vats: token %q: %w", token, err)
		}
		entries = append(entries, VATEntry{
			Index:           len(entries),
			Label:           label,
			TaxRulesGroupID: groupID,
			RateLabel:       rate,
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("vats: %w", ErrEmptyDimension)
	}
	return entries, nil
}
