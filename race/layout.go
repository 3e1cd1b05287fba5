package race

import (
	"math"

	"github.com/pthm-cable/shellrace/simerr"
	"github.com/pthm-cable/shellrace/terrain"
	"github.com/pthm-cable/shellrace/turtle"
)

// Entry is one turtle's participation in a race.
type Entry struct {
	Turtle      *turtle.Turtle
	Lane        int // input order
	Checkpoints int // checkpoints passed so far
	FinishTick  int // 0 until finished
}

// Finished reports whether the entry has crossed the finish.
func (e *Entry) Finished() bool {
	return e.Turtle.Finished()
}

// Layout is the track model a race runs on.
type Layout interface {
	// Kind names the layout for telemetry and snapshots.
	Kind() string
	// Length is the nominal race length.
	Length() float64
	// Prepare places an entry on the start line.
	Prepare(e *Entry)
	// Terrain returns the segment under the entry.
	Terrain(e *Entry) terrain.Segment
	// Advance applies a physics step that moved the turtle by moved.
	Advance(e *Entry, moved float64)
	// Complete reports whether the entry has met the finish condition.
	Complete(e *Entry) bool
	// CheckpointCount returns the number of checkpoints, 0 for layouts without them.
	CheckpointCount() int
}

// Validator is implemented by layouts that can check themselves before a
// race starts.
type Validator interface {
	Validate() error
}

// Locator is implemented by layouts that place turtles in 2-D.
type Locator interface {
	Locate(e *Entry) (x, y float64)
}

// Linear is the tile-sequence track: turtles run along a Track and finish
// once their distance reaches Finish.
type Linear struct {
	Track  terrain.Track
	Finish float64
}

// NewLinear returns a layout that finishes at the track's nominal length.
func NewLinear(track terrain.Track) Linear {
	n := len(track) - terrain.Pad
	if n <= 0 {
		n = len(track)
	}
	return Linear{Track: track, Finish: float64(n) * terrain.SegmentLength}
}

// Kind returns "linear".
func (l Linear) Kind() string {
	return "linear"
}

// Length returns the finish distance.
func (l Linear) Length() float64 {
	return l.Finish
}

// Prepare is a no-op: ResetForRace already zeroes the distance.
func (l Linear) Prepare(*Entry) {}

// CheckpointCount returns 0.
func (l Linear) CheckpointCount() int {
	return 0
}

// Terrain returns the segment under the turtle's distance.
func (l Linear) Terrain(e *Entry) terrain.Segment {
	return l.Track.At(e.Turtle.Distance())
}

// Advance is a no-op: distance lives on the turtle.
func (l Linear) Advance(*Entry, float64) {}

// Complete reports whether the turtle has reached the finish distance.
func (l Linear) Complete(e *Entry) bool {
	return e.Turtle.Distance() >= l.Finish
}

// Validate checks the finish distance and every segment.
func (l Linear) Validate() error {
	if math.IsNaN(l.Finish) || l.Finish <= 0 {
		return simerr.Configurationf("finish", "must be positive, got %v", l.Finish)
	}
	for i, seg := range l.Track {
		if !seg.Valid() {
			return simerr.Configurationf("terrain", "segment %d has unrecognized value %d", i, uint8(seg))
		}
	}
	return nil
}

// Span is a stretch of terrain reported to spectators.
type Span struct {
	Start   float64         `json:"start_distance"`
	End     float64         `json:"end_distance"`
	Terrain terrain.Segment `json:"terrain_type"`
}

// Ahead returns up to n segments starting under distance.
func (l Linear) Ahead(distance float64, n int) []Span {
	segs := l.Track.Window(distance, n)
	if len(segs) == 0 {
		return nil
	}
	start := math.Floor(math.Max(distance, 0)/terrain.SegmentLength) * terrain.SegmentLength
	start = math.Min(start, float64(len(l.Track)-1)*terrain.SegmentLength)
	spans := make([]Span, len(segs))
	for i, seg := range segs {
		from := start + float64(i)*terrain.SegmentLength
		spans[i] = Span{Start: from, End: from + terrain.SegmentLength, Terrain: seg}
	}
	return spans
}
