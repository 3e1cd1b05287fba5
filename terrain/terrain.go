// Package terrain models the tile-sequence race track.
package terrain

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
)

// Segment is one fixed-length unit of track terrain.
type Segment uint8

const (
	Open Segment = iota
	Water
	Rough

	numSegments
)

const (
	// SegmentLength is the distance covered by one segment.
	SegmentLength = 10.0

	// Pad is the number of extra segments appended past the nominal length
	// so lookups near the finish never run off the array.
	Pad = 100
)

// Draw thresholds for the 60/20/20 segment distribution.
const (
	openCutoff  = 0.6
	waterCutoff = 0.8
)

var segmentNames = [numSegments]string{"open", "water", "rough"}

// Valid reports whether s is a known segment value.
func (s Segment) Valid() bool {
	return s < numSegments
}

// String returns the lowercase segment name.
func (s Segment) String() string {
	if !s.Valid() {
		return fmt.Sprintf("segment(%d)", uint8(s))
	}
	return segmentNames[s]
}

// MarshalText encodes the segment as its name.
func (s Segment) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown terrain segment %d", uint8(s))
	}
	return []byte(segmentNames[s]), nil
}

// UnmarshalText decodes a segment name.
func (s *Segment) UnmarshalText(text []byte) error {
	seg, err := ParseSegment(string(text))
	if err != nil {
		return err
	}
	*s = seg
	return nil
}

// ParseSegment converts a name ("open", "water", "rough") to a Segment.
func ParseSegment(name string) (Segment, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "open":
		return Open, nil
	case "water":
		return Water, nil
	case "rough":
		return Rough, nil
	}
	return Open, fmt.Errorf("unknown terrain segment %q", name)
}

// Track is an ordered, immutable sequence of segments addressed by distance.
type Track []Segment

// SegmentCount returns the number of segments Generate produces for length.
func SegmentCount(length float64) int {
	if length < 0 || math.IsNaN(length) {
		length = 0
	}
	return int(math.Floor(length/SegmentLength)) + Pad
}

// Generate builds a track for the given nominal length.
// Each segment is drawn independently: 60% open, 20% water, 20% rough.
func Generate(length float64, rng *rand.Rand) Track {
	n := SegmentCount(length)
	track := make(Track, n)
	for i := range track {
		track[i] = draw(rng)
	}
	return track
}

func draw(rng *rand.Rand) Segment {
	u := rng.Float64()
	switch {
	case u < openCutoff:
		return Open
	case u < waterCutoff:
		return Water
	default:
		return Rough
	}
}

// At returns the segment under the given distance.
// Distances past either end clamp to the first or last segment. An empty
// track is all open ground.
func At(track Track, distance float64) Segment {
	if len(track) == 0 {
		return Open
	}
	idx := 0
	if distance > 0 {
		f := math.Floor(distance / SegmentLength)
		if f >= float64(len(track)-1) {
			return track[len(track)-1]
		}
		idx = int(f)
	}
	return track[idx]
}

// At is the method form of At.
func (t Track) At(distance float64) Segment {
	return At(t, distance)
}

// Window returns up to n segments starting at the one under distance.
func (t Track) Window(distance float64, n int) []Segment {
	if len(t) == 0 || n <= 0 {
		return nil
	}
	start := 0
	if distance > 0 {
		start = int(math.Min(math.Floor(distance/SegmentLength), float64(len(t)-1)))
	}
	end := min(start+n, len(t))
	out := make([]Segment, end-start)
	copy(out, t[start:end])
	return out
}

// Counts returns how many segments of each kind the track holds.
func (t Track) Counts() map[Segment]int {
	counts := make(map[Segment]int, numSegments)
	for _, s := range t {
		counts[s]++
	}
	return counts
}

// Uniform builds a track of n identical segments.
func Uniform(seg Segment, n int) Track {
	if n < 0 {
		n = 0
	}
	track := make(Track, n)
	for i := range track {
		track[i] = seg
	}
	return track
}
