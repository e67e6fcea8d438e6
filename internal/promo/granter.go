package promo

import (
	"context"

	"github.com/pointbarre/quoteapi/internal/cart"
)

// Granter plugs rule evaluation into the cart quote. It loads the
// active rules on every call; rule churn is low enough that this stays
// a single indexed query.
type Granter struct {
	Store  *Store
	Engine Engine
}

// GiftsFor implements cart.GiftSource.
func (g *Granter) GiftsFor(ctx context.Context, lines []cart.Line) ([]cart.Gift, error) {
	if g == nil || g.Store == nil {
		return nil, nil
	}
	rules, err := g.Store.ActiveRules(ctx)
	if err != nil {
		return nil, err
	}
	return g.Engine.Evaluate(rules, lines), nil
}
