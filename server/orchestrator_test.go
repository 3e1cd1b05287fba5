package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/simerr"
	"github.com/pthm-cable/shellrace/telemetry"
)

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(msgType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, msgType)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

// fastConfig shortens races so tests finish in milliseconds.
func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Track.Length = 100
	cfg.Derived.Finish = 100
	cfg.Race.MaxTicks = 400
	cfg.Derived.TickInterval = time.Millisecond
	cfg.Derived.BroadcastInterval = time.Millisecond
	cfg.Derived.Intermission = time.Millisecond
	cfg.Server.Entrants = 4
	return cfg
}

func testEngine(t *testing.T, cfg *config.Config) *genetics.Engine {
	t.Helper()
	engine, err := genetics.NewEngine(genetics.DefaultSchema(), cfg.Genetics.MutationRate)
	require.NoError(t, err)
	return engine
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, pub Publisher, hof *telemetry.HallOfFame) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(OrchestratorOptions{
		Config:     cfg,
		Engine:     testEngine(t, cfg),
		HallOfFame: hof,
		Publisher:  pub,
		Metrics:    NewMetrics(prometheus.NewRegistry()),
		Seed:       11,
	})
	require.NoError(t, err)
	return o
}

func TestOrchestratorRunRace(t *testing.T) {
	cfg := fastConfig()
	pub := &recordingPublisher{}
	hof := telemetry.NewHallOfFame(5, cfg.Telemetry.HallOfFame)
	o := newTestOrchestrator(t, cfg, pub, hof)

	_, ok := o.Latest()
	assert.False(t, ok, "no snapshot before the first race")

	rs, err := o.RunRace(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rs.Race)
	assert.Equal(t, 4, rs.Entrants)
	assert.LessOrEqual(t, rs.Ticks, cfg.Race.MaxTicks)
	assert.Equal(t, 1, o.Races())
	if rs.Finishers > 0 {
		assert.GreaterOrEqual(t, hof.Size(), 1, "the winner should enter the hall of fame")
	}

	types := pub.Types()
	require.GreaterOrEqual(t, len(types), 3)
	assert.Equal(t, MessageRaceStart, types[0])
	assert.Equal(t, MessageRaceFinished, types[len(types)-1])
	assert.Contains(t, types, MessageSnapshot)

	snap, ok := o.Latest()
	require.True(t, ok)
	assert.Equal(t, rs.RaceID, snap.RaceID)
	assert.Equal(t, rs.Ticks, snap.Tick)
	assert.Len(t, snap.Turtles, 4)
}

func TestOrchestratorTimedOutRaceHasNoWinner(t *testing.T) {
	cfg := fastConfig()
	cfg.Race.MaxTicks = 1
	hof := telemetry.NewHallOfFame(5, cfg.Telemetry.HallOfFame)
	o := newTestOrchestrator(t, cfg, nil, hof)

	rs, err := o.RunRace(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Finishers)
	assert.Equal(t, 0, hof.Size(), "no entrant won")
}

func TestOrchestratorFieldDrawsFromHallOfFame(t *testing.T) {
	cfg := fastConfig()
	cfg.Server.Entrants = 6
	hof := telemetry.NewHallOfFame(5, cfg.Telemetry.HallOfFame)
	o := newTestOrchestrator(t, cfg, nil, hof)

	// Seed the hall with a winner from a real race
	for hof.Size() == 0 {
		_, err := o.RunRace(context.Background())
		require.NoError(t, err)
		require.Less(t, o.Races(), 20, "no race produced a winner")
	}
	champ := hof.Entries()[0].Record.ID

	field, err := o.Field()
	require.NoError(t, err)
	require.Len(t, field, 6)

	found := false
	for _, tt := range field {
		if tt.ID.String() == champ {
			found = true
		}
	}
	assert.True(t, found, "hall of fame turtle should be entered")
}

func TestOrchestratorSetSpeed(t *testing.T) {
	pub := &recordingPublisher{}
	o := newTestOrchestrator(t, fastConfig(), pub, nil)
	assert.Equal(t, 1, o.Speed())

	require.NoError(t, o.SetSpeed(4))
	assert.Equal(t, 4, o.Speed())
	assert.Equal(t, []string{MessageSpeed}, pub.Types())

	// Unchanged speed publishes nothing
	require.NoError(t, o.SetSpeed(4))
	assert.Len(t, pub.Types(), 1)

	for _, bad := range []int{0, 3, 8, -1} {
		err := o.SetSpeed(bad)
		assert.True(t, errors.Is(err, simerr.ErrValidation), "speed %d: %v", bad, err)
	}
	assert.Equal(t, 4, o.Speed())
}

func TestOrchestratorRunStopsOnCancel(t *testing.T) {
	o := newTestOrchestrator(t, fastConfig(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- o.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not stop")
	}
}

func TestNewOrchestratorRejectsUnknownCourse(t *testing.T) {
	cfg := fastConfig()
	_, err := NewOrchestrator(OrchestratorOptions{Config: cfg, Engine: testEngine(t, cfg), Course: "figure-eight"})
	assert.True(t, errors.Is(err, simerr.ErrValidation))
}
