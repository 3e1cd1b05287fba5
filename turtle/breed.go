package turtle

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/simerr"
)

// Spawn creates a turtle with random genetics from engine.
func Spawn(name string, stats Stats, engine *genetics.Engine, rng *rand.Rand) (*Turtle, error) {
	return New(name, stats, engine.Random(rng), engine.Schema())
}

// Breed produces a child of p1 and p2.
//
// The child's name joins the first half of p1's name with the second half
// of p2's. Each base stat is drawn uniformly between the parents' values and
// genetics are inherited trait by trait. The child is one generation past
// its older parent.
func Breed(p1, p2 *Turtle, engine *genetics.Engine, rng *rand.Rand) (*Turtle, error) {
	if p1 == nil || p2 == nil {
		return nil, simerr.Validationf("parent", "both parents are required")
	}
	if p1 == p2 || p1.ID == p2.ID {
		return nil, simerr.Validationf("parent", "a turtle cannot breed with itself")
	}

	a, b := p1.stats, p2.stats
	stats := Stats{
		Speed:     genetics.InheritStat(a.Speed, b.Speed, rng),
		MaxEnergy: genetics.InheritStat(a.MaxEnergy, b.MaxEnergy, rng),
		Recovery:  genetics.InheritStat(a.Recovery, b.Recovery, rng),
		Swim:      genetics.InheritStat(a.Swim, b.Swim, rng),
		Climb:     genetics.InheritStat(a.Climb, b.Climb, rng),
	}

	genes, err := engine.Inherit(p1.genes, p2.genes, rng)
	if err != nil {
		return nil, err
	}

	child, err := New(ChildName(p1.Name, p2.Name), stats, genes, engine.Schema())
	if err != nil {
		return nil, err
	}
	child.Generation = max(p1.Generation, p2.Generation) + 1
	child.ParentIDs = []uuid.UUID{p1.ID, p2.ID}
	return child, nil
}

// ChildName joins the first half of a with the second half of b.
func ChildName(a, b string) string {
	ra, rb := []rune(a), []rune(b)
	return string(ra[:len(ra)/2]) + string(rb[len(rb)/2:])
}
