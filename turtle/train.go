package turtle

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/simerr"
)

// sideGainChance is the probability each non-trained stat also improves.
const sideGainChance = 0.2

// Train ages the turtle by one and improves stat by one point. Every other
// stat improves by one with 20% probability. Stats never exceed their range.
func (t *Turtle) Train(stat Stat, rng *rand.Rand) error {
	if _, err := ParseStat(string(stat)); err != nil {
		return err
	}

	t.Age++
	t.bump(stat)
	for _, other := range AllStats {
		if other == stat {
			continue
		}
		if rng.Float64() < sideGainChance {
			t.bump(other)
		}
	}
	return nil
}

func (t *Turtle) bump(st Stat) {
	t.stats.set(st, math.Min(t.stats.Get(st)+1, statCap(st)))
}

// AddRaceResult appends a race to the history, keeping the most recent
// HistoryLimit entries.
func (t *Turtle) AddRaceResult(position, earnings int) {
	t.totalRaces++
	t.totalEarnings += earnings
	t.history = append(t.history, RaceEntry{
		Number:   t.totalRaces,
		Position: position,
		Earnings: earnings,
		Age:      t.Age,
	})
	if len(t.history) > HistoryLimit {
		t.history = append([]RaceEntry(nil), t.history[len(t.history)-HistoryLimit:]...)
	}
}

// MutateTrait redraws one trait from its domain and returns its name.
// An empty name picks a carried trait uniformly at random. Only the
// targeted trait changes.
func (t *Turtle) MutateTrait(name string, engine *genetics.Engine, rng *rand.Rand) (string, error) {
	if name == "" {
		keys := t.genes.Keys()
		if len(keys) == 0 {
			return "", simerr.Validationf("genetics", "turtle carries no traits")
		}
		name = keys[rng.Intn(len(keys))]
	}
	v, ok := t.genes[name]
	if !ok {
		return "", simerr.Validationf(name, "trait not carried")
	}

	mutated, err := engine.MutateGene(name, v, rng, 1)
	if err != nil {
		return "", err
	}
	t.genes[name] = mutated
	return name, nil
}

// MutateGenes runs every carried trait through the engine's mutation rate.
func (t *Turtle) MutateGenes(engine *genetics.Engine, rng *rand.Rand) error {
	mutated, err := engine.MutateAll(t.genes, rng)
	if err != nil {
		return err
	}
	t.genes = mutated
	return nil
}
