package promo

import (
	"errors"
	"time"

	"github.com/pointbarre/quoteapi/internal/cart"
	"github.com/pointbarre/quoteapi/internal/variant"
)

var (
	// ErrRuleInactive is returned when a rule is evaluated outside of
	// its validity window.
	ErrRuleInactive = errors.New("promotion not active")
	// ErrRuleExpired is returned when the rule's validity window is
	// already over.
	ErrRuleExpired = errors.New("promotion expired")
)

// Rule grants free quantities of a product variant when the cart holds
// enough paid units of it.
type Rule struct {
	ID        int64
	Name      string
	ProductID int64
	// VariantID zero applies the rule to every variant of the product.
	VariantID    int64
	MinQuantity  int
	GiftQuantity int
	// Repeat grants the gift once per MinQuantity instead of once per
	// cart.
	Repeat    bool
	ValidFrom *time.Time
	ValidTo   *time.Time
}

// Validate checks the rule's validity window at the provided instant.
func (r Rule) Validate(now time.Time) error {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrRuleInactive
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrRuleExpired
	}
	return nil
}

// Engine evaluates gift rules against cart lines.
type Engine struct {
	Now func() time.Time
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Evaluate returns the gift quantities the rules grant for the given
// lines. Inactive rules are skipped, never reported as errors.
func (e Engine) Evaluate(rules []Rule, lines []cart.Line) []cart.Gift {
	now := e.now()
	var gifts []cart.Gift
	for _, rule := range rules {
		if rule.Validate(now) != nil {
			continue
		}
		if rule.MinQuantity <= 0 || rule.GiftQuantity <= 0 {
			continue
		}
		qty := matchedQuantity(rule, lines)
		if qty < rule.MinQuantity {
			continue
		}
		granted := rule.GiftQuantity
		if rule.Repeat {
			granted = (qty / rule.MinQuantity) * rule.GiftQuantity
		}
		gifts = append(gifts, cart.Gift{
			ProductID: rule.ProductID,
			VariantID: giftVariant(rule, lines),
			Quantity:  granted,
		})
	}
	return gifts
}

func matchedQuantity(rule Rule, lines []cart.Line) int {
	ruleVariant := variant.Normalize(rule.VariantID)
	total := 0
	for _, line := range lines {
		if line.ProductID != rule.ProductID {
			continue
		}
		if rule.VariantID != 0 && variant.Normalize(line.VariantID) != ruleVariant {
			continue
		}
		total += line.Quantity
	}
	return total
}

// giftVariant picks which variant the gift lands on: the rule's pinned
// variant, or the first matching line's.
func giftVariant(rule Rule, lines []cart.Line) int64 {
	if rule.VariantID != 0 {
		return variant.Normalize(rule.VariantID)
	}
	for _, line := range lines {
		if line.ProductID == rule.ProductID {
			return variant.Normalize(line.VariantID)
		}
	}
	return variant.Base
}
