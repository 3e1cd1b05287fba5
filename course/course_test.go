package course

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/race"
	"github.com/pthm-cable/shellrace/simerr"
	"github.com/pthm-cable/shellrace/terrain"
	"github.com/pthm-cable/shellrace/turtle"
)

func flatPhysics() config.PhysicsConfig {
	return config.PhysicsConfig{BaseCost: 0.4, TerrainBaseline: 10, MinTerrainModifier: 0.1}
}

func walker(t *testing.T, name string, speed float64) *turtle.Turtle {
	t.Helper()
	tt, err := turtle.New(name, turtle.Stats{Speed: speed, MaxEnergy: 500, Recovery: 5, Swim: 10, Climb: 10}, nil, nil)
	if err != nil {
		t.Fatalf("turtle.New failed: %v", err)
	}
	return tt
}

func TestTerrainAt(t *testing.T) {
	c := &Course{
		Width: 100, Height: 100,
		Zones: []Zone{
			{MinX: 0, MinY: 0, MaxX: 50, MaxY: 50, Segment: terrain.Water},
			{MinX: 25, MinY: 25, MaxX: 100, MaxY: 100, Segment: terrain.Rough},
		},
	}

	tests := []struct {
		x, y float64
		want terrain.Segment
	}{
		{10, 10, terrain.Water},
		{30, 30, terrain.Water}, // first match wins
		{75, 75, terrain.Rough},
		{75, 10, terrain.Open},
	}
	for _, tt := range tests {
		if got := c.TerrainAt(tt.x, tt.y); got != tt.want {
			t.Errorf("TerrainAt(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestCheckpointProgression(t *testing.T) {
	c := &Course{
		Width: 200, Height: 100,
		Start: turtle.Position{X: 0, Y: 50},
		Checkpoints: []Checkpoint{
			{X: 50, Y: 50, Radius: 5},
			{X: 100, Y: 50, Radius: 5},
		},
	}

	tt := walker(t, "Walker", 10)
	sim, err := race.New([]*turtle.Turtle{tt}, c, race.Options{Physics: flatPhysics()})
	if err != nil {
		t.Fatalf("race.New failed: %v", err)
	}

	// 10 units per tick: the first checkpoint is 50 away
	for range 4 {
		sim.Tick()
	}
	if got := sim.Entries()[0].Checkpoints; got != 0 {
		t.Fatalf("checkpoints after 4 ticks = %d, want 0", got)
	}
	sim.Tick()
	if got := sim.Entries()[0].Checkpoints; got != 1 {
		t.Fatalf("checkpoints after 5 ticks = %d, want 1", got)
	}

	results := sim.Run(100)
	if !results[0].Finished || results[0].Checkpoints != 2 {
		t.Errorf("result = %+v, want finished with 2 checkpoints", results[0])
	}
	if results[0].Ticks != 10 {
		t.Errorf("finish tick = %d, want 10", results[0].Ticks)
	}
	if pos, _ := tt.Position(); pos.X != 100 || pos.Y != 50 {
		t.Errorf("final position = %+v, want (100, 50)", pos)
	}
}

func TestOvershootLandsOnCheckpoint(t *testing.T) {
	c := &Course{
		Width: 100, Height: 100,
		Start:       turtle.Position{X: 0, Y: 0},
		Checkpoints: []Checkpoint{{X: 3, Y: 4, Radius: 1}, {X: 50, Y: 4, Radius: 1}},
	}
	e := &race.Entry{Turtle: walker(t, "Fast", 50)}
	c.Prepare(e)

	c.Advance(e, 50)
	pos, _ := e.Turtle.Position()
	if pos.X != 3 || pos.Y != 4 {
		t.Errorf("position = %+v, want (3, 4)", pos)
	}
	if e.Checkpoints != 1 {
		t.Errorf("checkpoints = %d, want 1", e.Checkpoints)
	}
	if c.Complete(e) {
		t.Error("course complete after one of two checkpoints")
	}
}

func TestEmptyCourseNeverCompletes(t *testing.T) {
	c := &Course{Width: 100, Height: 100}
	tt := walker(t, "Lost", 5)

	sim, err := race.New([]*turtle.Turtle{tt}, c, race.Options{Physics: flatPhysics()})
	if err != nil {
		t.Fatalf("race.New failed: %v", err)
	}
	results := sim.Run(20)
	if results[0].Finished {
		t.Error("turtle finished a course without checkpoints")
	}
}

func TestCheckpointRanking(t *testing.T) {
	c := Oval(800, 600)
	rng := rand.New(rand.NewSource(3))

	fast := walker(t, "Fast", 12)
	slow := walker(t, "Slow", 4)
	sim, err := race.New([]*turtle.Turtle{slow, fast}, c, race.Options{Physics: config.Default().Physics, Rng: rng})
	if err != nil {
		t.Fatalf("race.New failed: %v", err)
	}

	results := sim.Run(60)
	if results[0].Turtle != fast {
		t.Errorf("leader = %s, want Fast", results[0].Turtle.Name)
	}
	if results[0].Checkpoints < results[1].Checkpoints {
		t.Errorf("leader has fewer checkpoints (%d) than second (%d)", results[0].Checkpoints, results[1].Checkpoints)
	}
}

func TestOvalShape(t *testing.T) {
	c := Oval(800, 600)
	if c.CheckpointCount() != 9 {
		t.Fatalf("checkpoints = %d, want 9", c.CheckpointCount())
	}
	last := c.Checkpoints[len(c.Checkpoints)-1]
	if last.X != 400 || last.Y != 300 {
		t.Errorf("finish checkpoint at (%v, %v), want center", last.X, last.Y)
	}
	ring := c.Checkpoints[7]
	if math.Abs(ring.X-c.Start.X) > 1e-9 || math.Abs(ring.Y-c.Start.Y) > 1e-9 {
		t.Errorf("ring does not close at the start: %+v vs %+v", ring, c.Start)
	}
	if c.TerrainAt(400, 10) != terrain.Rough || c.TerrainAt(400, 300) != terrain.Open {
		t.Error("unexpected oval terrain")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	c, err := FromConfig(cfg.Course, cfg.Race.LaneSpacing)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if c.CheckpointCount() != len(cfg.Course.Checkpoints) {
		t.Errorf("checkpoints = %d, want %d", c.CheckpointCount(), len(cfg.Course.Checkpoints))
	}
	if c.Length() <= 0 {
		t.Error("course length should be positive")
	}

	bad := cfg.Course
	bad.Zones = []config.ZoneConfig{{MaxX: 10, MaxY: 10, Terrain: "lava"}}
	if _, err := FromConfig(bad, 10); !errors.Is(err, simerr.ErrConfiguration) {
		t.Errorf("got %v, want configuration error", err)
	}
}

func TestBuild(t *testing.T) {
	cfg := config.Default()
	rng := rand.New(rand.NewSource(3))

	lin, err := Build(KindLinear, cfg, rng)
	if err != nil {
		t.Fatalf("Build(linear) failed: %v", err)
	}
	if lin.Kind() != KindLinear || lin.Length() != cfg.Derived.Finish {
		t.Errorf("linear layout = %s/%v, want linear/%v", lin.Kind(), lin.Length(), cfg.Derived.Finish)
	}

	cp, err := Build(KindCheckpoint, cfg, rng)
	if err != nil {
		t.Fatalf("Build(checkpoint) failed: %v", err)
	}
	if cp.CheckpointCount() != len(cfg.Course.Checkpoints) {
		t.Errorf("checkpoints = %d", cp.CheckpointCount())
	}

	if _, err := Build("spiral", cfg, rng); !errors.Is(err, simerr.ErrValidation) {
		t.Errorf("got %v, want validation error", err)
	}
}
