package turtle

import (
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/simerr"
)

// Record is the serializable shape of a turtle used by save files and the
// HTTP API.
type Record struct {
	ID            string       `json:"id,omitempty"`
	Name          string       `json:"name"`
	Speed         float64      `json:"speed"`
	Energy        float64      `json:"energy"`
	Recovery      float64      `json:"recovery"`
	Swim          float64      `json:"swim"`
	Climb         float64      `json:"climb"`
	Age           int          `json:"age"`
	IsActive      bool         `json:"is_active"`
	CurrentEnergy float64      `json:"current_energy"`
	RaceDistance  float64      `json:"race_distance"`
	IsResting     bool         `json:"is_resting"`
	Finished      bool         `json:"finished"`
	Rank          *int         `json:"rank"`
	Genetics      genetics.Map `json:"genetics"`

	Generation    int         `json:"generation,omitempty"`
	ParentIDs     []string    `json:"parent_ids,omitempty"`
	RaceHistory   []RaceEntry `json:"race_history,omitempty"`
	TotalRaces    int         `json:"total_races,omitempty"`
	TotalEarnings int         `json:"total_earnings,omitempty"`
	Position      *Position   `json:"position,omitempty"`
}

// Record captures the turtle's current state.
func (t *Turtle) Record() Record {
	rec := Record{
		ID:            t.ID.String(),
		Name:          t.Name,
		Speed:         t.stats.Speed,
		Energy:        t.stats.MaxEnergy,
		Recovery:      t.stats.Recovery,
		Swim:          t.stats.Swim,
		Climb:         t.stats.Climb,
		Age:           t.Age,
		IsActive:      t.Active,
		CurrentEnergy: t.energy,
		RaceDistance:  t.distance,
		IsResting:     t.state == Resting,
		Finished:      t.state == Finished,
		Genetics:      t.genes.Clone(),
		Generation:    t.Generation,
		RaceHistory:   t.History(),
		TotalRaces:    t.totalRaces,
		TotalEarnings: t.totalEarnings,
	}
	if rank, ok := t.Rank(); ok {
		rec.Rank = &rank
	}
	for _, id := range t.ParentIDs {
		rec.ParentIDs = append(rec.ParentIDs, id.String())
	}
	if t.pos != nil {
		p := *t.pos
		rec.Position = &p
	}
	return rec
}

// FromRecord rebuilds a turtle from its serialized shape, validating it
// against schema. A nil schema selects the default turtle schema.
func FromRecord(rec Record, schema *genetics.Schema) (*Turtle, error) {
	stats := Stats{
		Speed:     rec.Speed,
		MaxEnergy: rec.Energy,
		Recovery:  rec.Recovery,
		Swim:      rec.Swim,
		Climb:     rec.Climb,
	}
	t, err := New(rec.Name, stats, rec.Genetics, schema)
	if err != nil {
		return nil, err
	}

	if rec.ID != "" {
		id, err := uuid.Parse(rec.ID)
		if err != nil {
			return nil, simerr.Validationf("id", "invalid uuid %q", rec.ID)
		}
		t.ID = id
	}
	for _, s := range rec.ParentIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, simerr.Validationf("parent_ids", "invalid uuid %q", s)
		}
		t.ParentIDs = append(t.ParentIDs, id)
	}

	switch {
	case rec.Age < 0:
		return nil, simerr.Validationf("age", "must not be negative, got %d", rec.Age)
	case math.IsNaN(rec.CurrentEnergy) || rec.CurrentEnergy < 0 || rec.CurrentEnergy > rec.Energy:
		return nil, simerr.Validationf("current_energy", "must be in [0, %v], got %v", rec.Energy, rec.CurrentEnergy)
	case math.IsNaN(rec.RaceDistance) || rec.RaceDistance < 0:
		return nil, simerr.Validationf("race_distance", "must not be negative, got %v", rec.RaceDistance)
	case rec.Finished && (rec.Rank == nil || *rec.Rank < 1):
		return nil, simerr.Validationf("rank", "finished turtle needs a rank of at least 1")
	case !rec.Finished && rec.Rank != nil:
		return nil, simerr.Validationf("rank", "only finished turtles carry a rank")
	case rec.Finished && rec.IsResting:
		return nil, simerr.Validationf("is_resting", "finished turtle cannot be resting")
	case rec.Generation < 0 || rec.TotalRaces < 0:
		return nil, simerr.Validationf("generation", "counters must not be negative")
	}

	t.Age = rec.Age
	t.Active = rec.IsActive
	t.Generation = rec.Generation
	t.energy = rec.CurrentEnergy
	t.distance = rec.RaceDistance
	switch {
	case rec.Finished:
		t.state = Finished
		t.rank = *rec.Rank
	case rec.IsResting:
		t.state = Resting
	default:
		t.state = Active
	}

	t.history = slices.Clone(rec.RaceHistory)
	if len(t.history) > HistoryLimit {
		t.history = t.history[len(t.history)-HistoryLimit:]
	}
	t.totalRaces = max(rec.TotalRaces, len(t.history))
	t.totalEarnings = rec.TotalEarnings
	if rec.Position != nil {
		t.SetPosition(*rec.Position)
	}
	return t, nil
}
