package telemetry

import (
	"log/slog"

	"github.com/pthm-cable/shellrace/race"
	"github.com/pthm-cable/shellrace/terrain"
)

// WindowStats aggregates a window of consecutive races.
type WindowStats struct {
	WindowStart int `csv:"-"`
	WindowEnd   int `csv:"window_end"`
	Races       int `csv:"races"`

	Entrants   int     `csv:"entrants"`
	Finishers  int     `csv:"finishers"`
	FinishRate float64 `csv:"finish_rate"`

	// Race length in ticks
	TicksMean float64 `csv:"ticks_mean"`
	TicksP50  float64 `csv:"ticks_p50"`
	TicksP90  float64 `csv:"ticks_p90"`

	WinnerSpeedMean float64 `csv:"winner_speed_mean"`

	// Share of racing turtle-ticks spent resting or on each terrain
	RestShare  float64 `csv:"rest_share"`
	OpenShare  float64 `csv:"open_share"`
	WaterShare float64 `csv:"water_share"`
	RoughShare float64 `csv:"rough_share"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStart),
		slog.Int("window_end", s.WindowEnd),
		slog.Int("races", s.Races),
		slog.Float64("finish_rate", s.FinishRate),
		slog.Float64("ticks_mean", s.TicksMean),
		slog.Float64("ticks_p50", s.TicksP50),
		slog.Float64("winner_speed_mean", s.WinnerSpeedMean),
		slog.Float64("rest_share", s.RestShare),
		slog.Float64("water_share", s.WaterShare),
		slog.Float64("rough_share", s.RoughShare),
	)
}

// Collector accumulates per-tick observations and race summaries over a
// window of races and produces WindowStats.
type Collector struct {
	windowRaces int
	windowStart int

	races        int
	entrants     int
	finishers    int
	raceTicks    []float64
	winnerSpeeds []float64

	turtleTicks  int
	restingTicks int
	terrainTicks map[terrain.Segment]int
}

// NewCollector creates a collector flushing every windowRaces races.
func NewCollector(windowRaces int) *Collector {
	if windowRaces < 1 {
		windowRaces = 1
	}
	return &Collector{
		windowRaces:  windowRaces,
		terrainTicks: make(map[terrain.Segment]int),
	}
}

// ObserveTick samples every racing turtle after a tick.
func (c *Collector) ObserveTick(sim *race.Simulator) {
	layout := sim.Layout()
	for _, e := range sim.Entries() {
		if e.Finished() {
			continue
		}
		c.turtleTicks++
		if e.Turtle.Resting() {
			c.restingTicks++
		}
		c.terrainTicks[layout.Terrain(e)]++
	}
}

// RecordRace adds a finished race to the window.
func (c *Collector) RecordRace(rs RaceStats) {
	c.races++
	c.entrants += rs.Entrants
	c.finishers += rs.Finishers
	c.raceTicks = append(c.raceTicks, float64(rs.Ticks))
	if rs.Winner != "" {
		c.winnerSpeeds = append(c.winnerSpeeds, rs.WinnerSpeed)
	}
}

// ShouldFlush reports whether the window is full.
func (c *Collector) ShouldFlush() bool {
	return c.races >= c.windowRaces
}

// Flush produces the stats for the window ending at race raceIndex and
// resets for the next window.
func (c *Collector) Flush(raceIndex int) WindowStats {
	ticks := Summarize(c.raceTicks)
	ws := WindowStats{
		WindowStart:     c.windowStart,
		WindowEnd:       raceIndex,
		Races:           c.races,
		Entrants:        c.entrants,
		Finishers:       c.finishers,
		TicksMean:       ticks.Mean,
		TicksP50:        ticks.P50,
		TicksP90:        ticks.P90,
		WinnerSpeedMean: Summarize(c.winnerSpeeds).Mean,
	}
	if c.entrants > 0 {
		ws.FinishRate = float64(c.finishers) / float64(c.entrants)
	}
	if c.turtleTicks > 0 {
		n := float64(c.turtleTicks)
		ws.RestShare = float64(c.restingTicks) / n
		ws.OpenShare = float64(c.terrainTicks[terrain.Open]) / n
		ws.WaterShare = float64(c.terrainTicks[terrain.Water]) / n
		ws.RoughShare = float64(c.terrainTicks[terrain.Rough]) / n
	}

	c.windowStart = raceIndex
	c.races, c.entrants, c.finishers = 0, 0, 0
	c.raceTicks, c.winnerSpeeds = nil, nil
	c.turtleTicks, c.restingTicks = 0, 0
	clear(c.terrainTicks)
	return ws
}
