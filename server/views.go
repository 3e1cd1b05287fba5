package server

import (
	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/race"
	"github.com/pthm-cable/shellrace/turtle"
)

// ResultView is one entrant's outcome as returned to clients.
type ResultView struct {
	Rank        int           `json:"rank"`
	Finished    bool          `json:"finished"`
	Ticks       int           `json:"ticks"`
	Distance    float64       `json:"distance"`
	Checkpoints int           `json:"checkpoints,omitempty"`
	Earnings    int           `json:"earnings"`
	Genome      string        `json:"genome,omitempty"`
	Turtle      turtle.Record `json:"turtle"`
}

func resultViews(results []race.Result, codec *genetics.Codec) []ResultView {
	views := make([]ResultView, len(results))
	for i, r := range results {
		v := ResultView{
			Rank:        r.Rank,
			Finished:    r.Finished,
			Ticks:       r.Ticks,
			Distance:    r.Distance,
			Checkpoints: r.Checkpoints,
			Turtle:      r.Turtle.Record(),
		}
		// Earnings of the race just settled, if any
		if h := r.Turtle.History(); len(h) > 0 {
			v.Earnings = h[len(h)-1].Earnings
		}
		if codec != nil {
			v.Genome = codec.Encode(r.Turtle.Genetics())
		}
		views[i] = v
	}
	return views
}

// ShopItem is a turtle offered for sale.
type ShopItem struct {
	Turtle turtle.Record `json:"turtle"`
	Price  int           `json:"price"`
	Value  float64       `json:"value"`
	Genome string        `json:"genome"`
}
