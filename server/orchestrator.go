package server

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/course"
	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/race"
	"github.com/pthm-cable/shellrace/simerr"
	"github.com/pthm-cable/shellrace/telemetry"
	"github.com/pthm-cable/shellrace/turtle"
)

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Config     *config.Config
	Engine     *genetics.Engine
	HallOfFame *telemetry.HallOfFame // nil disables hall of fame entrants
	Publisher  Publisher             // nil discards broadcasts
	Metrics    *Metrics
	Logger     *slog.Logger
	Seed       int64
	Course     string // layout kind, linear by default
}

// Orchestrator runs live races back to back for spectators. It owns its
// simulator and turtles; other goroutines only see published snapshots.
type Orchestrator struct {
	cfg     *config.Config
	engine  *genetics.Engine
	codec   *genetics.Codec
	hof     *telemetry.HallOfFame
	pub     Publisher
	metrics *Metrics
	log     *slog.Logger
	rng     *rand.Rand
	course  string

	speed atomic.Int32
	races atomic.Int64

	mu     sync.RWMutex
	latest *race.Snapshot
}

type discard struct{}

func (discard) Publish(string, any) error { return nil }

// NewOrchestrator validates opts and returns an idle orchestrator.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, simerr.Configurationf("config", "must not be nil")
	}
	if opts.Engine == nil {
		return nil, simerr.Configurationf("engine", "must not be nil")
	}
	codec, err := genetics.NewCodec(opts.Engine.Schema())
	if err != nil {
		return nil, err
	}
	switch opts.Course {
	case "":
		opts.Course = course.KindLinear
	case course.KindLinear, course.KindCheckpoint:
	default:
		return nil, simerr.Validationf("course", "unknown layout %q", opts.Course)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	pub := opts.Publisher
	if pub == nil {
		pub = discard{}
	}

	o := &Orchestrator{
		cfg:     opts.Config,
		engine:  opts.Engine,
		codec:   codec,
		hof:     opts.HallOfFame,
		pub:     pub,
		metrics: opts.Metrics,
		log:     log,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		course:  opts.Course,
	}
	o.speed.Store(int32(opts.Config.Server.Speed))
	o.metrics.SetSpeed(opts.Config.Server.Speed)
	return o, nil
}

// Speed returns the current multiplier.
func (o *Orchestrator) Speed() int {
	return int(o.speed.Load())
}

// SetSpeed changes how many ticks run per frame. Only 1, 2 and 4 are
// accepted; the change applies from the next frame.
func (o *Orchestrator) SetSpeed(n int) error {
	if !config.ValidSpeed(n) {
		return simerr.Validationf("speed", "must be 1, 2 or 4, got %d", n)
	}
	if old := o.speed.Swap(int32(n)); int(old) != n {
		o.metrics.SetSpeed(n)
		o.log.Info("speed changed", "from", old, "to", n)
		if err := o.pub.Publish(MessageSpeed, map[string]int{"speed": n}); err != nil {
			o.log.Warn("publish failed", "type", MessageSpeed, "error", err)
		}
	}
	return nil
}

// Latest returns the most recent snapshot, if a race has started.
func (o *Orchestrator) Latest() (race.Snapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.latest == nil {
		return race.Snapshot{}, false
	}
	return *o.latest, true
}

// Races returns the number of completed live races.
func (o *Orchestrator) Races() int {
	return int(o.races.Load())
}

// Run races until ctx is cancelled, pausing for the intermission between
// races.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if _, err := o.RunRace(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(o.cfg.Derived.Intermission):
		}
	}
}

// Field builds the entrants for a live race: shop turtles at the configured
// level, with up to a third of the places taken by hall of fame samples.
func (o *Orchestrator) Field() ([]*turtle.Turtle, error) {
	n := o.cfg.Server.Entrants
	field := make([]*turtle.Turtle, 0, n)
	seen := make(map[uuid.UUID]bool)

	if o.hof != nil {
		for range n / 3 {
			rec, ok := o.hof.Sample(o.rng)
			if !ok {
				break
			}
			t, err := turtle.FromRecord(rec, o.engine.Schema())
			if err != nil {
				return nil, err
			}
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			field = append(field, t)
		}
	}
	for len(field) < n {
		t, err := turtle.RandomTurtle(o.cfg.Server.Level, o.cfg.Shop, o.engine, o.rng)
		if err != nil {
			return nil, err
		}
		field = append(field, t)
	}
	return field, nil
}

// RunRace runs one live race to completion, the tick limit or ctx
// cancellation, and returns its stats.
func (o *Orchestrator) RunRace(ctx context.Context) (telemetry.RaceStats, error) {
	field, err := o.Field()
	if err != nil {
		return telemetry.RaceStats{}, err
	}
	layout, err := course.Build(o.course, o.cfg, o.rng)
	if err != nil {
		return telemetry.RaceStats{}, err
	}
	sim, err := race.New(field, layout, race.Options{Physics: o.cfg.Physics, Rng: o.rng, Logger: o.log})
	if err != nil {
		return telemetry.RaceStats{}, err
	}

	o.log.Info("race starting", "race", sim.ID, "course", layout.Kind(), "entrants", len(field))
	o.publish(MessageRaceStart, o.snapshot(sim))

	ticker := time.NewTicker(o.cfg.Derived.TickInterval)
	defer ticker.Stop()
	lastBroadcast := time.Now()
	maxTicks := o.cfg.Race.MaxTicks

	for !sim.Done() && sim.Ticks() < maxTicks {
		select {
		case <-ctx.Done():
			return telemetry.RaceStats{}, ctx.Err()
		case <-ticker.C:
		}
		for range o.Speed() {
			if sim.Done() || sim.Ticks() >= maxTicks {
				break
			}
			start := time.Now()
			sim.Tick()
			o.metrics.ObserveTick(start)
		}
		if time.Since(lastBroadcast) >= o.cfg.Derived.BroadcastInterval {
			lastBroadcast = time.Now()
			o.publish(MessageSnapshot, o.snapshot(sim))
		}
	}

	final := o.snapshot(sim)
	o.publish(MessageSnapshot, final)

	idx := int(o.races.Add(1))
	rs := telemetry.NewRaceStats(idx, 0, sim)
	o.settle(sim.Results())
	o.metrics.ObserveRace(rs)
	o.log.Info("race complete", "stats", rs)
	o.publish(MessageRaceFinished, struct {
		Stats   telemetry.RaceStats `json:"stats"`
		Results []ResultView        `json:"results"`
	}{rs, resultViews(sim.Results(), o.codec)})
	return rs, nil
}

// settle pays out prizes and offers every entrant to the hall of fame.
func (o *Orchestrator) settle(results []race.Result) {
	for _, r := range results {
		r.Turtle.AddRaceResult(r.Placing(), o.cfg.Race.Prize(r.Placing()))
		if o.hof != nil && o.hof.Consider(r.Turtle) {
			o.log.Debug("hall of fame entry", "turtle", r.Turtle)
		}
	}
	if o.hof != nil {
		o.metrics.SetHallOfFameSize(o.hof.Size())
	}
}

func (o *Orchestrator) snapshot(sim *race.Simulator) race.Snapshot {
	snap := sim.Snapshot(race.SnapshotOptions{
		Codec:       o.codec,
		TickRate:    o.cfg.Race.TickRate,
		Lookahead:   o.cfg.Race.Lookahead,
		LaneSpacing: o.cfg.Race.LaneSpacing,
	})
	o.mu.Lock()
	o.latest = &snap
	o.mu.Unlock()
	return snap
}

func (o *Orchestrator) publish(msgType string, payload any) {
	if err := o.pub.Publish(msgType, payload); err != nil {
		o.log.Warn("publish failed", "type", msgType, "error", err)
	}
}
