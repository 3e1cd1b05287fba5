package game

import (
	"cmp"
	"slices"

	"github.com/pthm-cable/shellrace/race"
	"github.com/pthm-cable/shellrace/turtle"
	"github.com/pthm-cable/shellrace/valuation"
)

// fillRoster fills empty slots: by breeding when enabled and two parents
// are available, otherwise by buying from the shop. Turtles added during
// the pass never become parents in it. A stable left with no turtles and
// no money for one gets a free level 0 turtle.
func (g *Game) fillRoster() error {
	fresh := make(map[*turtle.Turtle]bool)
	for i, t := range g.roster {
		if t != nil {
			continue
		}
		if g.cfg.Career.Breed {
			child, err := g.breedInto(i, fresh)
			if err != nil {
				return err
			}
			if child != nil {
				fresh[child] = true
				continue
			}
		}
		if err := g.buyInto(i); err != nil {
			return err
		}
		fresh[g.roster[i]] = true
	}

	if g.activeCount() > 0 {
		return nil
	}
	t, err := turtle.RandomTurtle(0, g.cfg.Shop, g.engine, g.rng)
	if err != nil {
		return err
	}
	g.roster[0] = t
	g.log.Info("stable restarted with a free turtle", "turtle", t, "money", g.money)
	return nil
}

func (g *Game) activeCount() int {
	n := 0
	for _, t := range g.roster {
		if t != nil {
			n++
		}
	}
	return n
}

// buyInto purchases one shop turtle into slot if the stable can afford it.
// The cheapest of a freshly drawn stock is bought.
func (g *Game) buyInto(slot int) error {
	var best *turtle.Turtle
	bestPrice := 0
	for range max(g.cfg.Shop.StockSize, 1) {
		t, err := turtle.RandomTurtle(g.level, g.cfg.Shop, g.engine, g.rng)
		if err != nil {
			return err
		}
		price := valuation.ShopPrice(t, g.cfg.Shop)
		if best == nil || price < bestPrice {
			best, bestPrice = t, price
		}
	}
	if bestPrice > g.money {
		return nil
	}
	g.money -= bestPrice
	g.roster[slot] = best
	g.log.Debug("bought turtle", "turtle", best, "price", bestPrice, "money", g.money)
	return nil
}

// breedInto breeds the two most successful turtles of the stable, active or
// retired, into slot. The second parent leaves the stable. It returns nil
// without error when fewer than two candidates exist.
func (g *Game) breedInto(slot int, exclude map[*turtle.Turtle]bool) (*turtle.Turtle, error) {
	var candidates []*turtle.Turtle
	for _, t := range g.roster {
		if t != nil && !exclude[t] {
			candidates = append(candidates, t)
		}
	}
	candidates = append(candidates, g.retired...)
	if len(candidates) < 2 {
		return nil, nil
	}
	slices.SortStableFunc(candidates, func(a, b *turtle.Turtle) int {
		if c := cmp.Compare(b.Wins(), a.Wins()); c != 0 {
			return c
		}
		return cmp.Compare(b.TotalEarnings(), a.TotalEarnings())
	})
	a, b := candidates[0], candidates[1]

	child, err := turtle.Breed(a, b, g.engine, g.rng)
	if err != nil {
		return nil, err
	}
	if g.cfg.Genetics.BreedMutation {
		if err := child.MutateGenes(g.engine, g.rng); err != nil {
			return nil, err
		}
	}

	g.remove(b)
	g.roster[slot] = child
	g.log.Info("bred turtle",
		"child", child,
		"parent1", a.Name,
		"parent2", b.Name,
		"genome", g.codec.Encode(child.Genetics()),
	)
	return child, nil
}

// remove drops t from the roster or the retired pool.
func (g *Game) remove(t *turtle.Turtle) {
	for i, r := range g.roster {
		if r == t {
			g.roster[i] = nil
			return
		}
	}
	g.retired = slices.DeleteFunc(g.retired, func(r *turtle.Turtle) bool { return r == t })
}

// pickRacer returns the roster turtle with the highest valuation.
func (g *Game) pickRacer() (int, *turtle.Turtle) {
	slot := -1
	var best *turtle.Turtle
	bestCost := 0.0
	for i, t := range g.roster {
		if t == nil {
			continue
		}
		if c := valuation.Cost(t, g.cfg.Valuation); best == nil || c > bestCost {
			slot, best, bestCost = i, t, c
		}
	}
	return slot, best
}

// placeBet stakes the configured bet when the stable can cover it.
func (g *Game) placeBet() int {
	bet := g.cfg.Career.Bet
	if bet <= 0 || bet > g.money {
		return 0
	}
	g.money -= bet
	return bet
}

// settle pays the racer's prize, plus double the stake on a finished win, and
// records the result on the racer. A racer that did not finish earns the
// participation prize.
func (g *Game) settle(results []race.Result, racer *turtle.Turtle, stake int) {
	for _, r := range results {
		if r.Turtle != racer {
			continue
		}
		placing := r.Placing()
		earnings := g.cfg.Race.Prize(placing)
		if placing == 1 {
			earnings += 2 * stake
		}
		g.money += earnings
		racer.AddRaceResult(placing, earnings)
		g.log.Debug("race settled", "turtle", racer, "rank", r.Rank, "finished", r.Finished, "earnings", earnings, "money", g.money)
		return
	}
}

// afterRace trains the turtles that sat out, ages the whole roster by one
// race and retires anyone at the retirement age.
func (g *Game) afterRace(racerSlot int) {
	for i, t := range g.roster {
		if t == nil {
			continue
		}
		if i == racerSlot {
			t.Age++
		} else {
			// Training ages the turtle too
			stat := turtle.AllStats[g.rng.Intn(len(turtle.AllStats))]
			if err := t.Train(stat, g.rng); err != nil {
				g.log.Error("training failed", "turtle", t, "stat", stat, "error", err)
			}
		}
		if g.cfg.Career.RetireAge > 0 && t.Age >= g.cfg.Career.RetireAge {
			t.Active = false
			g.roster[i] = nil
			g.retired = append(g.retired, t)
			g.log.Info("turtle retired", "turtle", t, "age", t.Age, "wins", t.Wins())
		}
	}
}
