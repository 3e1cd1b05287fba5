package turtle

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/simerr"
	"github.com/pthm-cable/shellrace/terrain"
)

// ResetForRace puts the turtle on the start line: active, full energy,
// no distance, no rank. Any in-progress race state is discarded.
func (t *Turtle) ResetForRace() {
	t.state = Active
	t.energy = t.stats.MaxEnergy
	t.distance = 0
	t.rank = 0
}

// TerrainModifier returns the speed multiplier for seg. Open ground is 1.0;
// water and rough scale swim and climb against the baseline, floored at the
// configured minimum.
func (t *Turtle) TerrainModifier(seg terrain.Segment, phys config.PhysicsConfig) (float64, error) {
	var affinity float64
	switch seg {
	case terrain.Open:
		return 1.0, nil
	case terrain.Water:
		affinity = t.stats.Swim
	case terrain.Rough:
		affinity = t.stats.Climb
	default:
		return 0, simerr.Configurationf("terrain", "unrecognized segment %d", uint8(seg))
	}
	return math.Max(affinity/phys.TerrainBaseline, phys.MinTerrainModifier), nil
}

// UpdatePhysics advances the turtle by one tick on seg and returns the
// distance moved.
//
// A finished turtle is left alone. An active turtle that starts the tick
// with no energy begins resting instead of moving. Resting turtles regain
// recovery energy and become active again once full. Active turtles move
// speed * modifier * jitter and pay base_cost / modifier energy.
func (t *Turtle) UpdatePhysics(seg terrain.Segment, phys config.PhysicsConfig, rng *rand.Rand) (float64, error) {
	if t.state == Finished {
		return 0, nil
	}
	mod, err := t.TerrainModifier(seg, phys)
	if err != nil {
		return 0, err
	}

	if t.state == Active && t.energy <= 0 {
		t.energy = 0
		t.state = Resting
	}

	if t.state == Resting {
		t.energy = math.Min(t.energy+t.stats.Recovery, t.stats.MaxEnergy)
		if t.energy >= t.stats.MaxEnergy {
			t.state = Active
		}
		return 0, nil
	}

	delta := t.stats.Speed * mod * jitter(phys.Jitter, rng)
	t.distance += delta

	cost := phys.BaseCost / mod
	t.energy = math.Max(0, t.energy-cost)

	return delta, nil
}

// jitter returns a multiplier in [1-j, 1+j). Zero width draws nothing.
func jitter(j float64, rng *rand.Rand) float64 {
	if j == 0 {
		return 1.0
	}
	return 1 + j*(2*rng.Float64()-1)
}

// Finish marks the turtle as finished with the given rank. It is a one-way
// transition.
func (t *Turtle) Finish(rank int) error {
	if t.state == Finished {
		return simerr.Validationf("rank", "turtle %s already finished with rank %d", t.Name, t.rank)
	}
	if rank < 1 {
		return simerr.Validationf("rank", "must be at least 1, got %d", rank)
	}
	t.state = Finished
	t.rank = rank
	return nil
}
