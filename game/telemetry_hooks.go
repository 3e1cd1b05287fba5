package game

import (
	"github.com/pthm-cable/shellrace/race"
	"github.com/pthm-cable/shellrace/telemetry"
)

// recordTelemetry writes the finished race, flushes the stats window when it
// is full and handles bookmarks.
func (g *Game) recordTelemetry(rs telemetry.RaceStats, results []race.Result) {
	if err := g.outputManager.WriteRace(rs); err != nil {
		g.log.Error("failed to write race", "error", err)
	}
	if err := g.outputManager.WriteResults(telemetry.ResultRows(rs.Race, rs.RaceID, results, g.codec)); err != nil {
		g.log.Error("failed to write results", "error", err)
	}
	if g.logStats {
		g.log.Info("race", "stats", rs, "money", g.money)
	}

	g.collector.RecordRace(rs)
	if g.collector.ShouldFlush() {
		window := g.collector.Flush(g.races)
		perfStats := g.perfCollector.Stats()
		if g.logStats {
			g.log.Info("window", "stats", window)
			g.log.Info("perf", "stats", perfStats)
		}
		if err := g.outputManager.WriteWindow(window); err != nil {
			g.log.Error("failed to write window", "error", err)
		}
		if err := g.outputManager.WritePerf(perfStats, g.races); err != nil {
			g.log.Error("failed to write perf", "error", err)
		}
	}

	for _, bm := range g.bookmarks.Check(rs) {
		if g.logStats {
			bm.LogBookmark()
		}
		if err := g.outputManager.WriteBookmark(bm); err != nil {
			g.log.Error("failed to write bookmark", "error", err)
		}
		// Save snapshot on bookmark
		if g.snapshotDir != "" {
			g.saveSnapshot()
		}
	}
}

// saveSnapshot writes the stable to snapshotDir.
func (g *Game) saveSnapshot() {
	snap := telemetry.NewSnapshot(g.rngSeed, g.races, g.money, g.roster, g.retired)
	path, err := telemetry.SaveSnapshot(snap, g.snapshotDir)
	if err != nil {
		g.log.Error("failed to save snapshot", "error", err)
		return
	}
	g.log.Info("saved snapshot", "path", path, "races", g.races)
}
