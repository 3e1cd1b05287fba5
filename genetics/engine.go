package genetics

import (
	"math/rand"

	"github.com/pthm-cable/shellrace/simerr"
)

// Engine generates, inherits and mutates trait maps against a schema.
// All randomness comes from the caller's rng; maps are walked in schema
// order so a seed always yields the same result.
type Engine struct {
	schema *Schema
	rate   float64
}

// NewEngine creates an engine with the given default mutation rate.
func NewEngine(schema *Schema, mutationRate float64) (*Engine, error) {
	if schema == nil {
		return nil, simerr.Validationf("schema", "must not be nil")
	}
	if mutationRate < 0 || mutationRate > 1 {
		return nil, simerr.Validationf("mutation_rate", "must be in [0, 1], got %v", mutationRate)
	}
	return &Engine{schema: schema, rate: mutationRate}, nil
}

// Schema returns the engine's schema.
func (e *Engine) Schema() *Schema {
	return e.schema
}

// MutationRate returns the default per-trait mutation probability.
func (e *Engine) MutationRate() float64 {
	return e.rate
}

// draw returns a uniformly random value from g's domain.
func (g Gene) draw(rng *rand.Rand) Value {
	switch g.Kind {
	case Range:
		return NumberValue(g.Min + rng.Float64()*(g.Max-g.Min))
	case Categorical:
		return CategoryValue(g.Options[rng.Intn(len(g.Options))])
	default:
		return ColorValue(rng.Intn(256), rng.Intn(256), rng.Intn(256))
	}
}

// RandomValue draws a fresh valid value for the named trait.
func (e *Engine) RandomValue(trait string, rng *rand.Rand) (Value, error) {
	g, ok := e.schema.Lookup(trait)
	if !ok {
		return Value{}, simerr.Validationf(trait, "unknown trait")
	}
	return g.draw(rng), nil
}

// Random draws a complete trait map.
func (e *Engine) Random(rng *rand.Rand) Map {
	m := make(Map, len(e.schema.genes))
	for _, g := range e.schema.genes {
		m[g.Name] = g.draw(rng)
	}
	return m
}

// Inherit combines two parent maps into a new child map.
//
// Categorical and color traits come from either parent with equal odds.
// Range traits are drawn uniformly between the parents' values. A trait
// carried by only one parent passes through unchanged. Either parent holding
// an unknown trait or an out-of-domain value is a validation error.
func (e *Engine) Inherit(p1, p2 Map, rng *rand.Rand) (Map, error) {
	if err := e.schema.ValidateMap(p1); err != nil {
		return nil, err
	}
	if err := e.schema.ValidateMap(p2); err != nil {
		return nil, err
	}

	child := make(Map, max(len(p1), len(p2)))
	for _, g := range e.schema.genes {
		v1, ok1 := p1[g.Name]
		v2, ok2 := p2[g.Name]
		switch {
		case ok1 && ok2:
			child[g.Name] = combine(g, v1, v2, rng)
		case ok1:
			child[g.Name] = v1
		case ok2:
			child[g.Name] = v2
		}
	}
	return child, nil
}

func combine(g Gene, v1, v2 Value, rng *rand.Rand) Value {
	if g.Kind == Range {
		return NumberValue(InheritStat(v1.Num, v2.Num, rng))
	}
	if rng.Float64() < 0.5 {
		return v1
	}
	return v2
}

// InheritStat draws uniformly from [lo, hi) of two parent values. Equal
// parents pass their value through unchanged.
func InheritStat(a, b float64, rng *rand.Rand) float64 {
	lo, hi := min(a, b), max(a, b)
	return lo + rng.Float64()*(hi-lo)
}

// MutateGene replaces value with a fresh draw with probability rate and
// returns it unchanged otherwise.
func (e *Engine) MutateGene(trait string, value Value, rng *rand.Rand, rate float64) (Value, error) {
	g, ok := e.schema.Lookup(trait)
	if !ok {
		return Value{}, simerr.Validationf(trait, "unknown trait")
	}
	if !g.Contains(value) {
		return Value{}, simerr.Validationf(trait, "value %v outside domain", value)
	}
	if rate < 0 || rate > 1 {
		return Value{}, simerr.Validationf("mutation_rate", "must be in [0, 1], got %v", rate)
	}
	if rng.Float64() < rate {
		return g.draw(rng), nil
	}
	return value, nil
}

// Mutate applies MutateGene at the engine's rate.
func (e *Engine) Mutate(trait string, value Value, rng *rand.Rand) (Value, error) {
	return e.MutateGene(trait, value, rng, e.rate)
}

// MutateRandom picks one trait of m uniformly and mutates it at the
// engine's rate. It returns a new map and the chosen trait; m is not
// modified. An empty map yields an empty copy and no trait.
func (e *Engine) MutateRandom(m Map, rng *rand.Rand) (Map, string, error) {
	if err := e.schema.ValidateMap(m); err != nil {
		return nil, "", err
	}
	out := m.Clone()
	if len(m) == 0 {
		return out, "", nil
	}

	traits := e.present(m)
	trait := traits[rng.Intn(len(traits))]
	v, err := e.Mutate(trait, m[trait], rng)
	if err != nil {
		return nil, "", err
	}
	out[trait] = v
	return out, trait, nil
}

// MutateAll runs every trait of m through Mutate independently.
func (e *Engine) MutateAll(m Map, rng *rand.Rand) (Map, error) {
	if err := e.schema.ValidateMap(m); err != nil {
		return nil, err
	}
	out := m.Clone()
	for _, trait := range e.present(m) {
		v, err := e.Mutate(trait, m[trait], rng)
		if err != nil {
			return nil, err
		}
		out[trait] = v
	}
	return out, nil
}

// present returns the traits of m in schema order. m must already be
// validated.
func (e *Engine) present(m Map) []string {
	traits := make([]string, 0, len(m))
	for _, g := range e.schema.genes {
		if _, ok := m[g.Name]; ok {
			traits = append(traits, g.Name)
		}
	}
	return traits
}
