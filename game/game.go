// Package game runs a headless racing career: a stable of turtles races
// against balanced opponents, earns prize money, trains, ages, retires and
// breeds, while telemetry records every race.
package game

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/course"
	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/race"
	"github.com/pthm-cable/shellrace/simerr"
	"github.com/pthm-cable/shellrace/telemetry"
	"github.com/pthm-cable/shellrace/turtle"
)

// Options configures a Game.
type Options struct {
	Config      *config.Config // nil uses config.Cfg()
	Seed        int64          // 0 = time-based
	Entrants    int            // 0 = server.entrants
	Level       int            // shop level for purchased turtles
	Course      string         // linear or checkpoint
	MaxTicks    int            // 0 = race.max_ticks
	OutputDir   string         // CSV logs; empty disables
	SnapshotDir string         // stable snapshots; empty disables
	Resume      string         // snapshot file to continue from
	HallOfFame  string         // hall_of_fame.json to preload
	LogStats    bool
	Logger      *slog.Logger
}

// Game holds the complete career state.
type Game struct {
	cfg     *config.Config
	rng     *rand.Rand
	rngSeed int64
	engine  *genetics.Engine
	codec   *genetics.Codec
	log     *slog.Logger

	// Stable
	roster  []*turtle.Turtle // fixed slots, nil when empty
	retired []*turtle.Turtle
	money   int
	races   int

	entrants int
	level    int
	course   string
	maxTicks int

	// Telemetry
	hof           *telemetry.HallOfFame
	collector     *telemetry.Collector
	bookmarks     *telemetry.BookmarkDetector
	perfCollector *telemetry.PerfCollector
	outputManager *telemetry.OutputManager
	snapshotDir   string
	logStats      bool
}

// NewGameWithOptions builds a game, restoring the stable from opts.Resume
// when set and otherwise stocking every roster slot from the shop for free.
func NewGameWithOptions(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	engine, err := genetics.NewEngine(genetics.DefaultSchema(), cfg.Genetics.MutationRate)
	if err != nil {
		return nil, err
	}
	codec, err := genetics.NewCodec(engine.Schema())
	if err != nil {
		return nil, err
	}

	g := &Game{
		cfg:           cfg,
		rng:           rand.New(rand.NewSource(seed)),
		rngSeed:       seed,
		engine:        engine,
		codec:         codec,
		log:           log,
		roster:        make([]*turtle.Turtle, cfg.Career.RosterSize),
		money:         cfg.Career.StartingMoney,
		entrants:      opts.Entrants,
		level:         opts.Level,
		course:        opts.Course,
		maxTicks:      opts.MaxTicks,
		collector:     telemetry.NewCollector(cfg.Telemetry.WindowRaces),
		bookmarks:     telemetry.NewBookmarkDetector(cfg.Telemetry.WindowRaces),
		perfCollector: telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		snapshotDir:   opts.SnapshotDir,
		logStats:      opts.LogStats,
	}
	if g.entrants <= 0 {
		g.entrants = cfg.Server.Entrants
	}
	if g.maxTicks <= 0 {
		g.maxTicks = cfg.Race.MaxTicks
	}
	if g.course == "" {
		g.course = course.KindLinear
	}
	// Reject unknown layouts before the first race
	if _, err := course.Build(g.course, cfg, rand.New(rand.NewSource(seed))); err != nil {
		return nil, err
	}

	if opts.HallOfFame != "" {
		g.hof, err = telemetry.LoadHallOfFameFromFile(opts.HallOfFame, cfg.Telemetry.HallOfFameSize, cfg.Telemetry.HallOfFame)
		if err != nil {
			return nil, err
		}
	} else {
		g.hof = telemetry.NewHallOfFame(cfg.Telemetry.HallOfFameSize, cfg.Telemetry.HallOfFame)
	}

	if opts.Resume != "" {
		if err := g.restore(opts.Resume); err != nil {
			return nil, err
		}
	} else {
		for i := range g.roster {
			t, err := turtle.RandomTurtle(g.level, cfg.Shop, engine, g.rng)
			if err != nil {
				return nil, err
			}
			g.roster[i] = t
		}
	}

	g.outputManager, err = telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := g.outputManager.WriteConfig(cfg); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Game) restore(path string) error {
	snap, err := telemetry.LoadSnapshot(path)
	if err != nil {
		return err
	}
	roster, retired, err := snap.Restore(g.engine.Schema())
	if err != nil {
		return err
	}
	// Extra turtles beyond the roster size go to the retired pool
	for i, t := range roster {
		if i < len(g.roster) {
			g.roster[i] = t
			continue
		}
		t.Active = false
		retired = append(retired, t)
	}
	g.retired = retired
	g.money = snap.Money
	g.races = snap.Races
	g.log.Info("stable restored", "path", path, "races", g.races, "money", g.money, "retired", len(g.retired))
	return nil
}

// Update prepares the stable and runs one race.
func (g *Game) Update() (telemetry.RaceStats, error) {
	if err := g.fillRoster(); err != nil {
		return telemetry.RaceStats{}, err
	}
	return g.RunRace()
}

// RunRace races the stable's best turtle against balanced opponents, then
// settles prizes, trains, ages and retires the roster and records telemetry.
func (g *Game) RunRace() (telemetry.RaceStats, error) {
	g.perfCollector.StartTick()
	g.perfCollector.StartPhase(telemetry.PhaseSetup)

	slot, racer := g.pickRacer()
	if racer == nil {
		return telemetry.RaceStats{}, simerr.Validationf("roster", "no turtle available to race")
	}
	field := []*turtle.Turtle{racer}
	for len(field) < g.entrants {
		opp, err := turtle.BalancedOpponent(racer, g.cfg.Shop, g.engine, g.rng)
		if err != nil {
			return telemetry.RaceStats{}, err
		}
		field = append(field, opp)
	}
	layout, err := course.Build(g.course, g.cfg, g.rng)
	if err != nil {
		return telemetry.RaceStats{}, err
	}
	sim, err := race.New(field, layout, race.Options{Physics: g.cfg.Physics, Rng: g.rng, Logger: g.log})
	if err != nil {
		return telemetry.RaceStats{}, err
	}
	stake := g.placeBet()

	for {
		g.perfCollector.StartPhase(telemetry.PhasePhysics)
		sim.Tick()
		g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
		g.collector.ObserveTick(sim)
		if sim.Done() || sim.Ticks() >= g.maxTicks {
			break
		}
		g.perfCollector.EndTick()
		g.perfCollector.StartTick()
	}

	g.perfCollector.StartPhase(telemetry.PhaseRanking)
	results := sim.Results()
	g.races++
	rs := telemetry.NewRaceStats(g.races, g.rngSeed, sim)
	g.settle(results, racer, stake)
	g.perfCollector.EndTick()

	g.afterRace(slot)
	for _, r := range results {
		g.hof.Consider(r.Turtle)
	}
	g.recordTelemetry(rs, results)
	return rs, nil
}

// Races returns the number of races run, including any restored ones.
func (g *Game) Races() int {
	return g.races
}

// Money returns the stable's balance.
func (g *Game) Money() int {
	return g.money
}

// Roster returns the roster slots. Empty slots are nil.
func (g *Game) Roster() []*turtle.Turtle {
	return append([]*turtle.Turtle(nil), g.roster...)
}

// Retired returns the retired turtles, oldest retirement first.
func (g *Game) Retired() []*turtle.Turtle {
	return append([]*turtle.Turtle(nil), g.retired...)
}

// HallOfFame returns the hall of fame.
func (g *Game) HallOfFame() *telemetry.HallOfFame {
	return g.hof
}

// Unload flushes the hall of fame and closes telemetry output.
func (g *Game) Unload() error {
	if err := g.outputManager.WriteHallOfFame(g.hof); err != nil {
		g.log.Error("failed to write hall of fame", "error", err)
	}
	if g.snapshotDir != "" {
		g.saveSnapshot()
	}
	return g.outputManager.Close()
}
