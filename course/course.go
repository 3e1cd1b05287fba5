// Package course implements the checkpoint race layout: turtles roam a 2-D
// field and must pass through every checkpoint in order.
package course

import (
	"math"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/race"
	"github.com/pthm-cable/shellrace/simerr"
	"github.com/pthm-cable/shellrace/terrain"
	"github.com/pthm-cable/shellrace/turtle"
)

// Checkpoint is a circular zone a turtle must enter.
type Checkpoint struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Contains reports whether (x, y) lies inside the checkpoint.
func (c Checkpoint) Contains(x, y float64) bool {
	return math.Hypot(x-c.X, y-c.Y) <= c.Radius
}

// Zone is a rectangle of non-open terrain.
type Zone struct {
	MinX, MinY float64
	MaxX, MaxY float64
	Segment    terrain.Segment
}

// Contains reports whether (x, y) lies inside the zone.
func (z Zone) Contains(x, y float64) bool {
	return x >= z.MinX && x <= z.MaxX && y >= z.MinY && y <= z.MaxY
}

// Course is a 2-D checkpoint layout. It implements race.Layout.
type Course struct {
	Width, Height float64
	Start         turtle.Position
	LaneSpacing   float64
	Checkpoints   []Checkpoint
	Zones         []Zone
}

var _ race.Layout = (*Course)(nil)

// Oval returns the default course for a width x height field: eight
// checkpoints around an oval, a finish checkpoint at the center and a band
// of rough ground around the edge.
func Oval(width, height float64) *Course {
	cx, cy := width/2, height/2
	rx, ry := width*3/8, height/3
	band := height / 4

	c := &Course{
		Width:       width,
		Height:      height,
		Start:       turtle.Position{X: cx - rx, Y: cy},
		LaneSpacing: 5,
	}
	// Clockwise from the upper left, ending back at the start
	for i := 1; i <= 8; i++ {
		angle := math.Pi + float64(i)*math.Pi/4
		c.Checkpoints = append(c.Checkpoints, Checkpoint{
			X:      cx + rx*math.Cos(angle),
			Y:      cy + ry*math.Sin(angle),
			Radius: 30,
		})
	}
	c.Checkpoints = append(c.Checkpoints, Checkpoint{X: cx, Y: cy, Radius: 40})

	c.Zones = []Zone{
		{MinX: 0, MinY: 0, MaxX: width, MaxY: band, Segment: terrain.Rough},
		{MinX: 0, MinY: height - band, MaxX: width, MaxY: height, Segment: terrain.Rough},
	}
	return c
}

// FromConfig builds a course from configuration.
func FromConfig(cfg config.CourseConfig, laneSpacing float64) (*Course, error) {
	c := &Course{
		Width:       cfg.Width,
		Height:      cfg.Height,
		Start:       turtle.Position{X: cfg.StartX, Y: cfg.StartY},
		LaneSpacing: laneSpacing,
	}
	for _, cp := range cfg.Checkpoints {
		c.Checkpoints = append(c.Checkpoints, Checkpoint{X: cp.X, Y: cp.Y, Radius: cp.Radius})
	}
	for _, z := range cfg.Zones {
		seg, err := terrain.ParseSegment(z.Terrain)
		if err != nil {
			return nil, simerr.Configurationf("course.zones", "%v", err)
		}
		c.Zones = append(c.Zones, Zone{MinX: z.MinX, MinY: z.MinY, MaxX: z.MaxX, MaxY: z.MaxY, Segment: seg})
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the field size, checkpoint radii and zone terrain.
func (c *Course) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return simerr.Configurationf("course", "field must have positive size, got %vx%v", c.Width, c.Height)
	}
	for i, cp := range c.Checkpoints {
		if cp.Radius <= 0 {
			return simerr.Configurationf("course.checkpoints", "checkpoint %d needs a positive radius", i)
		}
	}
	for i, z := range c.Zones {
		if !z.Segment.Valid() {
			return simerr.Configurationf("course.zones", "zone %d has unrecognized terrain", i)
		}
		if z.MinX > z.MaxX || z.MinY > z.MaxY {
			return simerr.Configurationf("course.zones", "zone %d is inverted", i)
		}
	}
	return nil
}

// TerrainAt returns the terrain of the first zone containing (x, y), or
// open ground.
func (c *Course) TerrainAt(x, y float64) terrain.Segment {
	for _, z := range c.Zones {
		if z.Contains(x, y) {
			return z.Segment
		}
	}
	return terrain.Open
}

// Reached reports whether (x, y) lies inside checkpoint index.
func (c *Course) Reached(index int, x, y float64) bool {
	if index < 0 || index >= len(c.Checkpoints) {
		return false
	}
	return c.Checkpoints[index].Contains(x, y)
}

// Bounds returns the field size.
func (c *Course) Bounds() (width, height float64) {
	return c.Width, c.Height
}

// Kind returns "checkpoint".
func (c *Course) Kind() string {
	return "checkpoint"
}

// Length returns the path length from the start through every checkpoint
// center.
func (c *Course) Length() float64 {
	var total float64
	x, y := c.Start.X, c.Start.Y
	for _, cp := range c.Checkpoints {
		total += math.Hypot(cp.X-x, cp.Y-y)
		x, y = cp.X, cp.Y
	}
	return total
}

// Prepare places the turtle at the start, offset by its lane.
func (c *Course) Prepare(e *race.Entry) {
	e.Checkpoints = 0
	e.Turtle.SetPosition(turtle.Position{
		X: c.Start.X,
		Y: c.Start.Y + float64(e.Lane)*c.LaneSpacing,
	})
}

// Terrain returns the terrain under the turtle.
func (c *Course) Terrain(e *race.Entry) terrain.Segment {
	p, _ := e.Turtle.Position()
	return c.TerrainAt(p.X, p.Y)
}

// Advance moves the turtle toward its next checkpoint by moved, stopping on
// the checkpoint center if it would overshoot, and counts the checkpoint
// once the turtle is inside it.
func (c *Course) Advance(e *race.Entry, moved float64) {
	if e.Checkpoints >= len(c.Checkpoints) {
		return
	}
	p, _ := e.Turtle.Position()
	target := c.Checkpoints[e.Checkpoints]

	dx, dy := target.X-p.X, target.Y-p.Y
	dist := math.Hypot(dx, dy)
	if moved > 0 && dist > 0 {
		if moved >= dist {
			p.X, p.Y = target.X, target.Y
		} else {
			p.X += dx / dist * moved
			p.Y += dy / dist * moved
		}
		e.Turtle.SetPosition(p)
	}

	if target.Contains(p.X, p.Y) {
		e.Checkpoints++
	}
}

// Complete reports whether every checkpoint has been passed. A course
// without checkpoints never completes.
func (c *Course) Complete(e *race.Entry) bool {
	return len(c.Checkpoints) > 0 && e.Checkpoints >= len(c.Checkpoints)
}

// CheckpointCount returns the number of checkpoints.
func (c *Course) CheckpointCount() int {
	return len(c.Checkpoints)
}

// Locate returns the turtle's position.
func (c *Course) Locate(e *race.Entry) (x, y float64) {
	p, _ := e.Turtle.Position()
	return p.X, p.Y
}
