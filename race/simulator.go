// Package race runs turtles over a layout and ranks them.
package race

import (
	"cmp"
	"log/slog"
	"math/rand"
	"slices"

	"github.com/google/uuid"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/simerr"
	"github.com/pthm-cable/shellrace/turtle"
)

// Options configures a Simulator.
type Options struct {
	Physics config.PhysicsConfig
	Rng     *rand.Rand   // may be nil only when Physics.Jitter is 0
	Logger  *slog.Logger // nil uses slog.Default()
}

// Result is one turtle's outcome.
type Result struct {
	Turtle      *turtle.Turtle
	Ticks       int // finish tick, or ticks elapsed for non-finishers
	Checkpoints int
	Finished    bool
	Rank        int // placement; non-finishers are placed after every finisher
	Distance    float64
}

// Placing is the rank a finisher is paid and recorded at. Non-finishers
// place 0.
func (r Result) Placing() int {
	if !r.Finished {
		return 0
	}
	return r.Rank
}

// Simulator advances a race one tick at a time. Driving it with repeated
// Tick calls or a single Run produces identical results for the same seed.
// It is not safe for concurrent use.
type Simulator struct {
	ID uuid.UUID

	entries []*Entry
	layout  Layout
	phys    config.PhysicsConfig
	rng     *rand.Rand
	log     *slog.Logger

	tick     int
	finished int
	done     bool
}

// New validates the roster and layout and puts every turtle on the start
// line. Invalid turtles are rejected here so the race itself never fails.
func New(turtles []*turtle.Turtle, layout Layout, opts Options) (*Simulator, error) {
	if layout == nil {
		return nil, simerr.Configurationf("layout", "must not be nil")
	}
	if v, ok := layout.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	if err := opts.Physics.Validate(); err != nil {
		return nil, simerr.Configurationf("physics", "%v", err)
	}
	if opts.Rng == nil && opts.Physics.Jitter != 0 {
		return nil, simerr.Configurationf("rng", "required when jitter is enabled")
	}

	seen := make(map[uuid.UUID]bool, len(turtles))
	entries := make([]*Entry, len(turtles))
	for i, t := range turtles {
		if t == nil {
			return nil, simerr.Validationf("turtles", "entry %d is nil", i)
		}
		if seen[t.ID] {
			return nil, simerr.Validationf("turtles", "turtle %s entered twice", t.ID)
		}
		seen[t.ID] = true
		if err := t.Stats().Validate(); err != nil {
			return nil, err
		}
		entries[i] = &Entry{Turtle: t, Lane: i}
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Simulator{
		ID:      uuid.New(),
		entries: entries,
		layout:  layout,
		phys:    opts.Physics,
		rng:     opts.Rng,
		log:     log,
	}
	for _, e := range entries {
		e.Turtle.ResetForRace()
		layout.Prepare(e)
	}
	return s, nil
}

// Tick advances every unfinished turtle by one tick, in input order, and
// ranks the turtles that completed during it. It returns true once every
// turtle has finished; further calls do nothing.
func (s *Simulator) Tick() bool {
	if s.done {
		return true
	}
	if len(s.entries) == 0 {
		s.done = true
		return true
	}
	s.tick++

	var crossed []*Entry
	for _, e := range s.entries {
		if e.Finished() {
			continue
		}
		moved, err := e.Turtle.UpdatePhysics(s.layout.Terrain(e), s.phys, s.rng)
		if err != nil {
			// Layout validation should make this unreachable
			s.log.Error("physics update failed", "turtle", e.Turtle, "tick", s.tick, "error", err)
			continue
		}
		s.layout.Advance(e, moved)
		if s.layout.Complete(e) {
			crossed = append(crossed, e)
		}
	}

	// Same-tick finishers: furthest first, then input order
	slices.SortStableFunc(crossed, func(a, b *Entry) int {
		return cmp.Compare(b.Turtle.Distance(), a.Turtle.Distance())
	})
	for _, e := range crossed {
		s.finished++
		e.FinishTick = s.tick
		// Finish cannot fail: rank is positive and e was unfinished
		_ = e.Turtle.Finish(s.finished)
		s.log.Debug("turtle finished",
			"race", s.ID,
			"turtle", e.Turtle,
			"rank", s.finished,
			"tick", s.tick,
			"distance", e.Turtle.Distance(),
		)
	}

	if s.finished == len(s.entries) {
		s.done = true
		s.logFinished()
	}
	return s.done
}

// Run ticks until every turtle finishes or maxTicks ticks have elapsed in
// total, and returns the results.
func (s *Simulator) Run(maxTicks int) []Result {
	for !s.done && s.tick < maxTicks {
		s.Tick()
	}
	if !s.done {
		s.log.Info("race stopped",
			"race", s.ID,
			"ticks", s.tick,
			"finishers", s.finished,
			"entrants", len(s.entries),
		)
	}
	return s.Results()
}

func (s *Simulator) logFinished() {
	attrs := []any{
		"race", s.ID,
		"layout", s.layout.Kind(),
		"ticks", s.tick,
		"entrants", len(s.entries),
	}
	if w, ok := s.Winner(); ok {
		attrs = append(attrs, "winner", w)
	}
	s.log.Info("race finished", attrs...)
}

// Done reports whether every turtle has finished.
func (s *Simulator) Done() bool {
	return s.done
}

// Ticks returns the number of ticks elapsed.
func (s *Simulator) Ticks() int {
	return s.tick
}

// Finishers returns how many turtles have finished.
func (s *Simulator) Finishers() int {
	return s.finished
}

// Layout returns the race layout.
func (s *Simulator) Layout() Layout {
	return s.layout
}

// Entries returns the entries in input order. Callers must not modify them.
func (s *Simulator) Entries() []*Entry {
	return s.entries
}

// Winner returns the rank 1 turtle, if anyone has finished.
func (s *Simulator) Winner() (*turtle.Turtle, bool) {
	for _, e := range s.entries {
		if rank, ok := e.Turtle.Rank(); ok && rank == 1 {
			return e.Turtle, true
		}
	}
	return nil, false
}

// Results returns every entrant in placement order: finishers by rank, then
// the rest by checkpoints passed, distance and input order. It may be
// called mid-race for provisional standings.
func (s *Simulator) Results() []Result {
	ordered := slices.Clone(s.entries)
	slices.SortStableFunc(ordered, compareEntries)

	results := make([]Result, len(ordered))
	for i, e := range ordered {
		r := Result{
			Turtle:      e.Turtle,
			Ticks:       s.tick,
			Checkpoints: e.Checkpoints,
			Finished:    e.Finished(),
			Rank:        i + 1,
			Distance:    e.Turtle.Distance(),
		}
		if r.Finished {
			r.Ticks = e.FinishTick
			r.Rank, _ = e.Turtle.Rank()
		}
		results[i] = r
	}
	return results
}

func compareEntries(a, b *Entry) int {
	af, bf := a.Finished(), b.Finished()
	switch {
	case af && bf:
		ra, _ := a.Turtle.Rank()
		rb, _ := b.Turtle.Rank()
		return cmp.Compare(ra, rb)
	case af:
		return -1
	case bf:
		return 1
	}
	if c := cmp.Compare(b.Checkpoints, a.Checkpoints); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Turtle.Distance(), a.Turtle.Distance()); c != 0 {
		return c
	}
	return cmp.Compare(a.Lane, b.Lane)
}

// Run races turtles over layout with the default physics and returns the
// results.
func Run(turtles []*turtle.Turtle, layout Layout, maxTicks int, rng *rand.Rand) ([]Result, error) {
	sim, err := New(turtles, layout, Options{Physics: config.Default().Physics, Rng: rng})
	if err != nil {
		return nil, err
	}
	return sim.Run(maxTicks), nil
}
