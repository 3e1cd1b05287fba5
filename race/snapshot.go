package race

import (
	"github.com/pthm-cable/shellrace/genetics"
)

// TurtleState is the spectator view of one entrant.
type TurtleState struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Distance    float64 `json:"distance"`
	Checkpoints int     `json:"checkpoints,omitempty"`
	Energy      float64 `json:"current_energy"`
	MaxEnergy   float64 `json:"max_energy"`
	Resting     bool    `json:"is_resting"`
	Finished    bool    `json:"finished"`
	Rank        int     `json:"rank,omitempty"`
	Genome      string  `json:"genome,omitempty"`
}

// Snapshot is the complete race state at one tick.
type Snapshot struct {
	RaceID       string        `json:"race_id"`
	Tick         int           `json:"tick"`
	ElapsedMS    float64       `json:"elapsed_ms"`
	Course       string        `json:"course_id"`
	TrackLength  float64       `json:"track_length"`
	Checkpoints  int           `json:"checkpoints,omitempty"`
	Turtles      []TurtleState `json:"turtles"`
	TerrainAhead []Span        `json:"terrain_ahead,omitempty"`
	Finished     bool          `json:"finished"`
	WinnerID     string        `json:"winner_id,omitempty"`
}

// SnapshotOptions controls what a snapshot carries.
type SnapshotOptions struct {
	Codec       *genetics.Codec // nil omits genomes
	TickRate    int             // ticks per second, for elapsed time
	Lookahead   int             // terrain segments ahead of the leader
	LaneSpacing float64         // vertical offset per lane on linear layouts
}

// Snapshot captures the race for spectators. Turtles appear in input order.
func (s *Simulator) Snapshot(opts SnapshotOptions) Snapshot {
	snap := Snapshot{
		RaceID:      s.ID.String(),
		Tick:        s.tick,
		Course:      s.layout.Kind(),
		TrackLength: s.layout.Length(),
		Checkpoints: s.layout.CheckpointCount(),
		Turtles:     make([]TurtleState, len(s.entries)),
		Finished:    s.done,
	}
	if opts.TickRate > 0 {
		snap.ElapsedMS = float64(s.tick) * 1000 / float64(opts.TickRate)
	}

	locator, _ := s.layout.(Locator)
	lead := 0.0
	for i, e := range s.entries {
		t := e.Turtle
		st := TurtleState{
			ID:          t.ID.String(),
			Name:        t.Name,
			X:           t.Distance(),
			Y:           float64(e.Lane) * opts.LaneSpacing,
			Distance:    t.Distance(),
			Checkpoints: e.Checkpoints,
			Energy:      t.Energy(),
			MaxEnergy:   t.MaxEnergy(),
			Resting:     t.Resting(),
			Finished:    t.Finished(),
		}
		if locator != nil {
			st.X, st.Y = locator.Locate(e)
		}
		if rank, ok := t.Rank(); ok {
			st.Rank = rank
		}
		if opts.Codec != nil {
			st.Genome = opts.Codec.Encode(t.Genetics())
		}
		snap.Turtles[i] = st
		lead = max(lead, t.Distance())
	}

	if lin, ok := s.layout.(Linear); ok && opts.Lookahead > 0 {
		snap.TerrainAhead = lin.Ahead(lead, opts.Lookahead)
	}
	if w, ok := s.Winner(); ok {
		snap.WinnerID = w.ID.String()
	}
	return snap
}
