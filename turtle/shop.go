package turtle

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/simerr"
)

// Names is the pool shop and opponent turtles are named from.
var Names = []string{
	"Speedy", "Flash", "Tank", "Rocky", "Splash",
	"Bolt", "Zoom", "Crush", "Snap", "Drift",
	"Turbo", "Nitro", "Apex", "Vortex", "Titan",
	"Goliath", "Dash", "Sprint", "Marathon", "Iron",
}

// Starting stats before any budget is spent.
var baseStats = Stats{Speed: 1, MaxEnergy: 50, Recovery: 1, Swim: 1, Climb: 1}

// RandomTurtle generates a shop turtle for the given level. Starting from the
// base stats, budget_base + level*budget_per_level points are spread over
// the stats uniformly at random; one energy point is worth energy_divisor
// energy. Spending stops early once every stat is capped.
func RandomTurtle(level int, shop config.ShopConfig, engine *genetics.Engine, rng *rand.Rand) (*Turtle, error) {
	if level < 0 || level > shop.MaxLevel {
		return nil, simerr.Validationf("level", "must be between 0 and %d, got %d", shop.MaxLevel, level)
	}
	name := Names[rng.Intn(len(Names))]

	stats := baseStats
	budget := shop.BudgetBase + level*shop.BudgetPerLevel
	for ; budget > 0 && !maxed(stats); budget-- {
		spend(&stats, AllStats[rng.Intn(len(AllStats))], shop.EnergyDivisor)
	}

	return Spawn(name, stats, engine, rng)
}

// BalancedOpponent generates a turtle with the same stat point total as
// player. Speed receives 15% of the points on average; the rest are spread
// evenly over the other stats.
func BalancedOpponent(player *Turtle, shop config.ShopConfig, engine *genetics.Engine, rng *rand.Rand) (*Turtle, error) {
	if player == nil {
		return nil, simerr.Validationf("player", "must not be nil")
	}
	name := Names[rng.Intn(len(Names))]

	budget := int(Points(player.stats, shop.EnergyDivisor) - Points(baseStats, shop.EnergyDivisor))
	stats := baseStats
	others := AllStats[1:]
	for ; budget > 0 && !maxed(stats); budget-- {
		if rng.Float64() < 0.15 {
			spend(&stats, StatSpeed, shop.EnergyDivisor)
			continue
		}
		spend(&stats, others[rng.Intn(len(others))], shop.EnergyDivisor)
	}

	return Spawn(name, stats, engine, rng)
}

// Points returns the stat point total of s. Energy counts one point per
// divisor units, rounded down.
func Points(s Stats, energyDivisor float64) float64 {
	return s.Speed + s.Recovery + s.Swim + s.Climb + math.Floor(s.MaxEnergy/energyDivisor)
}

// maxed reports whether every stat in s is at its cap.
func maxed(s Stats) bool {
	for _, st := range AllStats {
		if s.Get(st) < statCap(st) {
			return false
		}
	}
	return true
}

func spend(s *Stats, st Stat, energyDivisor float64) {
	step := 1.0
	if st == StatEnergy {
		step = energyDivisor
	}
	s.set(st, math.Min(s.Get(st)+step, statCap(st)))
}
