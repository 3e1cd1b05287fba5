package genetics

import "math"

// colorMatchThreshold is the normalized RGB similarity above which two colors
// count as matching.
const colorMatchThreshold = 0.8

var maxColorDistance = math.Sqrt(3 * 255 * 255)

// Similarity returns the fraction of schema traits on which a and b match.
// Colors match when their normalized RGB distance is within 20%; other kinds
// must be equal. Missing traits compare as the schema default.
func (s *Schema) Similarity(a, b Map) float64 {
	if len(s.genes) == 0 {
		return 0
	}

	matches := 0
	for _, g := range s.genes {
		va, ok := a[g.Name]
		if !ok {
			va = g.Default
		}
		vb, ok := b[g.Name]
		if !ok {
			vb = g.Default
		}

		if g.Kind == Color {
			var sq float64
			for i := range va.RGB {
				d := float64(va.RGB[i] - vb.RGB[i])
				sq += d * d
			}
			if 1-math.Sqrt(sq)/maxColorDistance > colorMatchThreshold {
				matches++
			}
			continue
		}
		if va.Equal(vb) {
			matches++
		}
	}
	return float64(matches) / float64(len(s.genes))
}
