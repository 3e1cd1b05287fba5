package course

import (
	"math/rand"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/race"
	"github.com/pthm-cable/shellrace/simerr"
	"github.com/pthm-cable/shellrace/terrain"
)

// Layout kinds accepted by Build.
const (
	KindLinear     = "linear"
	KindCheckpoint = "checkpoint"
)

// Build returns a fresh layout of the given kind. Linear tracks are drawn
// from rng at the configured length and finish at the derived finish
// distance; checkpoint courses come from the course section.
func Build(kind string, cfg *config.Config, rng *rand.Rand) (race.Layout, error) {
	switch kind {
	case KindLinear, "":
		lin := race.NewLinear(terrain.Generate(cfg.Track.Length, rng))
		if cfg.Derived.Finish > 0 {
			lin.Finish = cfg.Derived.Finish
		}
		return lin, nil
	case KindCheckpoint:
		return FromConfig(cfg.Course, cfg.Race.LaneSpacing)
	}
	return nil, simerr.Validationf("course", "unknown layout %q (want linear or checkpoint)", kind)
}
