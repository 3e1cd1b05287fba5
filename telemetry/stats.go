package telemetry

import (
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/race"
)

// Summary holds the distribution of one measured quantity.
type Summary struct {
	Mean float64
	Std  float64
	P10  float64
	P50  float64
	P90  float64
}

// Summarize computes mean, sample standard deviation and empirical
// percentiles. Returns the zero Summary for no values.
func Summarize(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var s Summary
	if n == 1 {
		s.Mean = sorted[0]
	} else {
		s.Mean, s.Std = stat.MeanStdDev(sorted, nil)
	}
	s.P10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	s.P50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	s.P90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return s
}

// Correlation returns the Pearson correlation of x and y, or 0 when either
// side has no variance.
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) {
		return 0
	}
	return c
}

// RaceStats summarizes one completed (or stopped) race.
type RaceStats struct {
	Race     int    `csv:"race" json:"race"`
	RaceID   string `csv:"race_id" json:"race_id"`
	Seed     int64  `csv:"seed" json:"seed"`
	Course   string `csv:"course" json:"course"`
	Ticks    int    `csv:"ticks" json:"ticks"`
	Entrants int    `csv:"entrants" json:"entrants"`

	Finishers   int     `csv:"finishers" json:"finishers"`
	Winner      string  `csv:"winner" json:"winner"`
	WinnerSpeed float64 `csv:"winner_speed" json:"winner_speed"`
	Margin      int     `csv:"margin" json:"margin"` // ticks between first and second finisher, -1 if fewer than two

	// Finish tick distribution over finishers
	FinishMean float64 `csv:"finish_mean" json:"finish_mean"`
	FinishStd  float64 `csv:"finish_std" json:"finish_std"`
	FinishP10  float64 `csv:"finish_p10" json:"finish_p10"`
	FinishP50  float64 `csv:"finish_p50" json:"finish_p50"`
	FinishP90  float64 `csv:"finish_p90" json:"finish_p90"`

	DistanceMean float64 `csv:"distance_mean" json:"distance_mean"`

	// Negative when faster turtles place better
	SpeedRankCorr float64 `csv:"speed_rank_corr" json:"speed_rank_corr"`
}

// NewRaceStats builds the stats for race number index from the simulator's
// current results.
func NewRaceStats(index int, seed int64, sim *race.Simulator) RaceStats {
	results := sim.Results()
	rs := RaceStats{
		Race:     index,
		RaceID:   sim.ID.String(),
		Seed:     seed,
		Course:   sim.Layout().Kind(),
		Ticks:    sim.Ticks(),
		Entrants: len(results),
		Margin:   -1,
	}

	var finishTicks, distances, speeds, ranks []float64
	for _, r := range results {
		distances = append(distances, r.Distance)
		speeds = append(speeds, r.Turtle.Speed())
		ranks = append(ranks, float64(r.Rank))
		if r.Finished {
			rs.Finishers++
			finishTicks = append(finishTicks, float64(r.Ticks))
		}
	}
	if w, ok := sim.Winner(); ok {
		rs.Winner = w.Name
		rs.WinnerSpeed = w.Speed()
	}

	if len(finishTicks) >= 2 {
		// Results are in rank order, so the first two finishers lead
		rs.Margin = int(finishTicks[1] - finishTicks[0])
	}

	fs := Summarize(finishTicks)
	rs.FinishMean, rs.FinishStd = fs.Mean, fs.Std
	rs.FinishP10, rs.FinishP50, rs.FinishP90 = fs.P10, fs.P50, fs.P90
	rs.DistanceMean = Summarize(distances).Mean
	rs.SpeedRankCorr = Correlation(speeds, ranks)
	return rs
}

// LogValue implements slog.LogValuer for structured logging.
func (s RaceStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("race", s.Race),
		slog.String("race_id", s.RaceID),
		slog.String("course", s.Course),
		slog.Int("ticks", s.Ticks),
		slog.Int("entrants", s.Entrants),
		slog.Int("finishers", s.Finishers),
		slog.String("winner", s.Winner),
		slog.Int("margin", s.Margin),
		slog.Float64("winner_speed", s.WinnerSpeed),
		slog.Float64("finish_mean", s.FinishMean),
		slog.Float64("finish_p50", s.FinishP50),
		slog.Float64("distance_mean", s.DistanceMean),
		slog.Float64("speed_rank_corr", s.SpeedRankCorr),
	)
}

// ResultRow is one entrant's line in results.csv.
type ResultRow struct {
	Race        int     `csv:"race"`
	RaceID      string  `csv:"race_id"`
	Rank        int     `csv:"rank"`
	TurtleID    string  `csv:"turtle_id"`
	Name        string  `csv:"name"`
	Generation  int     `csv:"generation"`
	Speed       float64 `csv:"speed"`
	MaxEnergy   float64 `csv:"max_energy"`
	Recovery    float64 `csv:"recovery"`
	Swim        float64 `csv:"swim"`
	Climb       float64 `csv:"climb"`
	Finished    bool    `csv:"finished"`
	Ticks       int     `csv:"ticks"`
	Distance    float64 `csv:"distance"`
	Checkpoints int     `csv:"checkpoints"`
	Genome      string  `csv:"genome"`
}

// ResultRows flattens results for CSV export. A nil codec leaves genomes
// empty.
func ResultRows(index int, raceID string, results []race.Result, codec *genetics.Codec) []ResultRow {
	rows := make([]ResultRow, len(results))
	for i, r := range results {
		t := r.Turtle
		st := t.Stats()
		row := ResultRow{
			Race:        index,
			RaceID:      raceID,
			Rank:        r.Rank,
			TurtleID:    t.ID.String(),
			Name:        t.Name,
			Generation:  t.Generation,
			Speed:       st.Speed,
			MaxEnergy:   st.MaxEnergy,
			Recovery:    st.Recovery,
			Swim:        st.Swim,
			Climb:       st.Climb,
			Finished:    r.Finished,
			Ticks:       r.Ticks,
			Distance:    r.Distance,
			Checkpoints: r.Checkpoints,
		}
		if codec != nil {
			row.Genome = codec.Encode(t.Genetics())
		}
		rows[i] = row
	}
	return rows
}
