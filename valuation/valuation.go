// Package valuation prices turtles.
package valuation

import (
	"math"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/turtle"
)

// Cost estimates a turtle's value from its speed. Roaming turtles add a
// penalty proportional to their Manhattan distance from the ideal position.
func Cost(t *turtle.Turtle, cfg config.ValuationConfig) float64 {
	cost := cfg.BaseCost + cfg.SpeedWeight*t.Speed()
	return cost + PositionPenalty(t, cfg)
}

// PositionPenalty returns the roaming penalty, or zero for turtles without a
// position.
func PositionPenalty(t *turtle.Turtle, cfg config.ValuationConfig) float64 {
	pos, ok := t.Position()
	if !ok {
		return 0
	}
	d := math.Abs(pos.X-cfg.IdealX) + math.Abs(pos.Y-cfg.IdealY)
	return cfg.PositionWeight * d
}

// ShopPrice is the shop's asking price: base price plus price_scale times
// the stat total, with energy scaled down by energy_divisor.
func ShopPrice(t *turtle.Turtle, cfg config.ShopConfig) int {
	s := t.Stats()
	total := s.Speed + s.MaxEnergy/cfg.EnergyDivisor + s.Recovery + s.Swim + s.Climb
	return cfg.BasePrice + int(total*cfg.PriceScale)
}
