// Package turtle implements the racing turtle: its stats, race state machine,
// genetics and lifecycle operations (breeding, shop generation, training).
package turtle

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/simerr"
)

// Upper bounds of the documented stat ranges. Every stat must be positive.
const (
	MaxStat      = 100.0
	MaxEnergyCap = 1000.0
)

// HistoryLimit is the number of race results a turtle remembers.
const HistoryLimit = 20

// State is the race state of a turtle.
type State uint8

const (
	Active State = iota
	Resting
	Finished
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Resting:
		return "resting"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Stat names a base stat.
type Stat string

const (
	StatSpeed    Stat = "speed"
	StatEnergy   Stat = "max_energy"
	StatRecovery Stat = "recovery"
	StatSwim     Stat = "swim"
	StatClimb    Stat = "climb"
)

// AllStats lists the base stats in canonical order.
var AllStats = []Stat{StatSpeed, StatEnergy, StatRecovery, StatSwim, StatClimb}

// ParseStat converts a stat name to a Stat.
func ParseStat(name string) (Stat, error) {
	s := Stat(strings.ToLower(strings.TrimSpace(name)))
	if s == "energy" {
		return StatEnergy, nil
	}
	for _, known := range AllStats {
		if s == known {
			return s, nil
		}
	}
	return "", simerr.Validationf(name, "unknown stat")
}

// Stats holds the base stats of a turtle.
type Stats struct {
	Speed     float64 `json:"speed"`
	MaxEnergy float64 `json:"energy"`
	Recovery  float64 `json:"recovery"`
	Swim      float64 `json:"swim"`
	Climb     float64 `json:"climb"`
}

// Validate checks every stat lies in its documented range.
func (s Stats) Validate() error {
	for _, st := range AllStats {
		v := s.Get(st)
		limit := statCap(st)
		if math.IsNaN(v) || v <= 0 || v > limit {
			return simerr.Validationf(string(st), "must be in (0, %v], got %v", limit, v)
		}
	}
	return nil
}

// Get returns the named stat.
func (s Stats) Get(st Stat) float64 {
	switch st {
	case StatSpeed:
		return s.Speed
	case StatEnergy:
		return s.MaxEnergy
	case StatRecovery:
		return s.Recovery
	case StatSwim:
		return s.Swim
	case StatClimb:
		return s.Climb
	}
	return 0
}

func (s *Stats) set(st Stat, v float64) {
	switch st {
	case StatSpeed:
		s.Speed = v
	case StatEnergy:
		s.MaxEnergy = v
	case StatRecovery:
		s.Recovery = v
	case StatSwim:
		s.Swim = v
	case StatClimb:
		s.Climb = v
	}
}

func statCap(st Stat) float64 {
	if st == StatEnergy {
		return MaxEnergyCap
	}
	return MaxStat
}

// Position is a 2-D location used by roaming turtles and checkpoint courses.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RaceEntry records one past race.
type RaceEntry struct {
	Number   int `json:"number"`
	Position int `json:"position"` // 0 when the turtle did not finish
	Earnings int `json:"earnings"`
	Age      int `json:"age_at_race"`
}

// Turtle is the racing entity.
//
// Race state (energy, distance, resting, rank) changes only through
// ResetForRace, UpdatePhysics, Finish and the layout movement helpers.
type Turtle struct {
	ID         uuid.UUID
	Name       string
	Age        int
	Active     bool
	Generation int
	ParentIDs  []uuid.UUID

	stats  Stats
	genes  genetics.Map
	schema *genetics.Schema

	state    State
	energy   float64
	distance float64
	rank     int // 0 = unset
	pos      *Position

	history       []RaceEntry
	totalRaces    int
	totalEarnings int
}

var defaultSchema = sync.OnceValue(genetics.DefaultSchema)

// New creates a turtle from explicit stats and genetics.
// A nil schema selects the default turtle schema; nil genes select the
// schema defaults. genes is copied.
func New(name string, stats Stats, genes genetics.Map, schema *genetics.Schema) (*Turtle, error) {
	if strings.TrimSpace(name) == "" {
		return nil, simerr.Validationf("name", "must not be empty")
	}
	if err := stats.Validate(); err != nil {
		return nil, err
	}
	if schema == nil {
		schema = defaultSchema()
	}
	if genes == nil {
		genes = schema.Defaults()
	}
	if err := schema.ValidateMap(genes); err != nil {
		return nil, err
	}

	return &Turtle{
		ID:     uuid.New(),
		Name:   name,
		Active: true,
		stats:  stats,
		genes:  genes.Clone(),
		schema: schema,
		state:  Active,
		energy: stats.MaxEnergy,
	}, nil
}

// Stats returns the base stats.
func (t *Turtle) Stats() Stats {
	return t.stats
}

// Speed returns the speed stat.
func (t *Turtle) Speed() float64 {
	return t.stats.Speed
}

// MaxEnergy returns the energy capacity.
func (t *Turtle) MaxEnergy() float64 {
	return t.stats.MaxEnergy
}

// Schema returns the schema the turtle's genetics satisfy.
func (t *Turtle) Schema() *genetics.Schema {
	return t.schema
}

// Genetics returns a copy of the genetics map.
func (t *Turtle) Genetics() genetics.Map {
	return t.genes.Clone()
}

// Trait returns the value of one trait. Traits the turtle does not carry
// are an error, not a silent default.
func (t *Turtle) Trait(name string) (genetics.Value, error) {
	if _, ok := t.schema.Lookup(name); !ok {
		return genetics.Value{}, simerr.Validationf(name, "unknown trait")
	}
	v, ok := t.genes[name]
	if !ok {
		return genetics.Value{}, simerr.Validationf(name, "trait not carried")
	}
	return v, nil
}

// State returns the race state.
func (t *Turtle) State() State {
	return t.state
}

// Energy returns the current energy.
func (t *Turtle) Energy() float64 {
	return t.energy
}

// Distance returns the distance covered in the current race.
func (t *Turtle) Distance() float64 {
	return t.distance
}

// Resting reports whether the turtle is recovering.
func (t *Turtle) Resting() bool {
	return t.state == Resting
}

// Finished reports whether the turtle has crossed the finish.
func (t *Turtle) Finished() bool {
	return t.state == Finished
}

// Rank returns the finishing rank, if one has been assigned.
func (t *Turtle) Rank() (int, bool) {
	return t.rank, t.rank > 0
}

// Position returns the 2-D location, if the turtle has one.
func (t *Turtle) Position() (Position, bool) {
	if t.pos == nil {
		return Position{}, false
	}
	return *t.pos, true
}

// SetPosition places the turtle on a 2-D course.
func (t *Turtle) SetPosition(p Position) {
	t.pos = &p
}

// ClearPosition removes the 2-D location.
func (t *Turtle) ClearPosition() {
	t.pos = nil
}

// History returns the recent race results, oldest first.
func (t *Turtle) History() []RaceEntry {
	out := make([]RaceEntry, len(t.history))
	copy(out, t.history)
	return out
}

// TotalRaces returns the lifetime race count.
func (t *Turtle) TotalRaces() int {
	return t.totalRaces
}

// TotalEarnings returns the lifetime earnings.
func (t *Turtle) TotalEarnings() int {
	return t.totalEarnings
}

// Wins counts finished first places in the remembered history.
func (t *Turtle) Wins() int {
	n := 0
	for _, e := range t.history {
		if e.Position == 1 {
			n++
		}
	}
	return n
}

// LogValue implements slog.LogValuer.
func (t *Turtle) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", t.ID.String()),
		slog.String("name", t.Name),
		slog.Int("generation", t.Generation),
		slog.Float64("speed", t.stats.Speed),
		slog.Float64("max_energy", t.stats.MaxEnergy),
	)
}
