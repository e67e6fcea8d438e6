package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RoundMode selects how taxed line totals are rounded when aggregating.
type RoundMode int

const (
	// RoundItem rounds the unit price before multiplying by quantity.
	RoundItem RoundMode = iota + 1
	// RoundLine multiplies first and rounds the line total once.
	RoundLine
	// RoundTotal defers rounding to the aggregate across all lines
	// sharing a tax-rules group.
	RoundTotal
)

// ParseRoundMode maps a configuration string onto a mode, defaulting to
// per-line rounding.
func ParseRoundMode(raw string) RoundMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "item":
		return RoundItem
	case "total":
		return RoundTotal
	default:
		return RoundLine
	}
}

// String returns the configuration name of the mode.
func (m RoundMode) String() string {
	switch m {
	case RoundItem:
		return "item"
	case RoundTotal:
		return "total"
	default:
		return "line"
	}
}

// Round applies half-away-from-zero rounding at the given precision,
// matching the legacy storefront arithmetic.
func Round(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}
