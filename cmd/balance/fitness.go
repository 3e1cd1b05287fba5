package main

import (
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/game"
	"github.com/pthm-cable/shellrace/telemetry"
)

// Targets are the race characteristics the evaluator steers towards.
type Targets struct {
	Ticks         float64 // mean race length
	SpeedRankCorr float64 // negative: faster turtles should usually place better
}

// Evaluation summarizes the races run for one parameter vector.
type Evaluation struct {
	Fitness       float64
	MeanTicks     float64
	SpeedRankCorr float64
	FinishRate    float64
}

// FitnessEvaluator runs headless careers and scores how close their races
// come to the targets.
type FitnessEvaluator struct {
	params  *ParamVector
	base    *config.Config
	seeds   []int64
	races   int
	targets Targets

	mu             sync.Mutex
	bestFitness    float64
	bestHallOfFame *telemetry.HallOfFame
	last           Evaluation
}

// NewFitnessEvaluator creates an evaluator running races per seed.
func NewFitnessEvaluator(params *ParamVector, base *config.Config, seeds []int64, races int, targets Targets) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		base:        base,
		seeds:       seeds,
		races:       races,
		targets:     targets,
		bestFitness: math.Inf(1),
	}
}

// BestHallOfFame returns the hall of fame from the best evaluation.
func (fe *FitnessEvaluator) BestHallOfFame() *telemetry.HallOfFame {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestHallOfFame
}

// Last returns the most recent evaluation.
func (fe *FitnessEvaluator) Last() Evaluation {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

type seedResult struct {
	stats []telemetry.RaceStats
	hof   *telemetry.HallOfFame
}

// Evaluate scores a raw parameter vector (lower = better). The seeds run in
// parallel; a seed that fails scores as infinitely bad.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.configFor(x)

	results := make([]seedResult, len(fe.seeds))
	var g errgroup.Group
	for i, seed := range fe.seeds {
		g.Go(func() error {
			r, err := fe.runCareer(cfg, seed)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("evaluation failed", "error", err)
		return math.Inf(1)
	}

	var all []telemetry.RaceStats
	for _, r := range results {
		all = append(all, r.stats...)
	}
	ev := fe.score(all)

	fe.mu.Lock()
	if ev.Fitness < fe.bestFitness {
		fe.bestFitness = ev.Fitness
		fe.bestHallOfFame = results[0].hof
	}
	fe.last = ev
	fe.mu.Unlock()
	return ev.Fitness
}

func (fe *FitnessEvaluator) configFor(x []float64) *config.Config {
	cfg := *fe.base
	fe.params.ApplyToConfig(&cfg, x)
	return &cfg
}

func (fe *FitnessEvaluator) runCareer(cfg *config.Config, seed int64) (seedResult, error) {
	g, err := game.NewGameWithOptions(game.Options{
		Config: cfg,
		Seed:   seed,
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		return seedResult{}, err
	}
	defer g.Unload()

	stats := make([]telemetry.RaceStats, 0, fe.races)
	for range fe.races {
		rs, err := g.Update()
		if err != nil {
			return seedResult{}, err
		}
		stats = append(stats, rs)
	}
	return seedResult{stats: stats, hof: g.HallOfFame()}, nil
}

// score combines the squared relative error of the race length, the
// squared error of the speed/rank correlation and the share of entrants
// that never finished.
func (fe *FitnessEvaluator) score(all []telemetry.RaceStats) Evaluation {
	if len(all) == 0 {
		return Evaluation{Fitness: math.Inf(1)}
	}
	ticks := make([]float64, len(all))
	corrs := make([]float64, len(all))
	var entrants, finishers int
	for i, rs := range all {
		ticks[i] = float64(rs.Ticks)
		corrs[i] = rs.SpeedRankCorr
		entrants += rs.Entrants
		finishers += rs.Finishers
	}

	ev := Evaluation{
		MeanTicks:     stat.Mean(ticks, nil),
		SpeedRankCorr: stat.Mean(corrs, nil),
	}
	if entrants > 0 {
		ev.FinishRate = float64(finishers) / float64(entrants)
	}
	lengthErr := (ev.MeanTicks - fe.targets.Ticks) / fe.targets.Ticks
	corrErr := ev.SpeedRankCorr - fe.targets.SpeedRankCorr
	ev.Fitness = lengthErr*lengthErr + corrErr*corrErr + (1 - ev.FinishRate)
	return ev
}
