package telemetry

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/turtle"
)

// HallEntry is a proven racer and the record it was admitted with.
type HallEntry struct {
	Record  turtle.Record `json:"turtle"`
	Fitness float64       `json:"fitness"`
	Wins    int           `json:"wins"`
	Podiums int           `json:"podiums"`
	Races   int           `json:"races"`
}

// HallOfFame keeps the best maxSize turtles by fitness, best first. It is
// safe for concurrent use.
type HallOfFame struct {
	mu      sync.RWMutex
	entries []HallEntry
	maxSize int
	weights config.HallOfFameConfig
}

// NewHallOfFame creates an empty hall of fame.
func NewHallOfFame(maxSize int, weights config.HallOfFameConfig) *HallOfFame {
	if maxSize < 1 {
		maxSize = 1
	}
	return &HallOfFame{
		entries: make([]HallEntry, 0, maxSize),
		maxSize: maxSize,
		weights: weights,
	}
}

// Fitness scores a turtle's remembered race history.
func (hof *HallOfFame) Fitness(t *turtle.Turtle) (fitness float64, wins, podiums, races int) {
	for _, e := range t.History() {
		races++
		if e.Position == 1 {
			wins++
		}
		if e.Position >= 1 && e.Position <= 3 {
			podiums++
		}
	}
	fitness = float64(wins)*hof.weights.WinWeight +
		float64(podiums)*hof.weights.PodiumWeight +
		float64(races)*hof.weights.FinishWeight
	return fitness, wins, podiums, races
}

// Consider evaluates a turtle for entry. A turtle already in the hall is
// re-scored. Returns true if the turtle is in the hall afterwards.
func (hof *HallOfFame) Consider(t *turtle.Turtle) bool {
	fitness, wins, podiums, races := hof.Fitness(t)
	if wins == 0 {
		return false
	}

	entry := HallEntry{
		Record:  t.Record(),
		Fitness: fitness,
		Wins:    wins,
		Podiums: podiums,
		Races:   races,
	}

	hof.mu.Lock()
	defer hof.mu.Unlock()
	hof.remove(entry.Record.ID)
	hof.entries = hof.insertEntry(hof.entries, entry)
	return hof.contains(entry.Record.ID)
}

func (hof *HallOfFame) remove(id string) {
	for i, e := range hof.entries {
		if e.Record.ID == id {
			hof.entries = append(hof.entries[:i], hof.entries[i+1:]...)
			return
		}
	}
}

func (hof *HallOfFame) contains(id string) bool {
	for _, e := range hof.entries {
		if e.Record.ID == id {
			return true
		}
	}
	return false
}

// insertEntry adds an entry keeping descending fitness order. Ties keep the
// earlier entry ahead. When full, the lowest entry falls off.
func (hof *HallOfFame) insertEntry(hall []HallEntry, entry HallEntry) []HallEntry {
	idx := sort.Search(len(hall), func(i int) bool {
		return hall[i].Fitness < entry.Fitness
	})
	if len(hall) >= hof.maxSize && idx >= hof.maxSize {
		return hall
	}

	hall = append(hall, HallEntry{})
	copy(hall[idx+1:], hall[idx:])
	hall[idx] = entry
	if len(hall) > hof.maxSize {
		hall = hall[:hof.maxSize]
	}
	return hall
}

// Sample picks a record by tournament selection (k=3). Returns false if
// the hall is empty.
func (hof *HallOfFame) Sample(rng *rand.Rand) (turtle.Record, bool) {
	hof.mu.RLock()
	defer hof.mu.RUnlock()
	if len(hof.entries) == 0 {
		return turtle.Record{}, false
	}

	const tournamentSize = 3
	best := -1
	for range tournamentSize {
		idx := rng.Intn(len(hof.entries))
		if best < 0 || hof.entries[idx].Fitness > hof.entries[best].Fitness {
			best = idx
		}
	}
	return hof.entries[best].Record, true
}

// Size returns the number of entries.
func (hof *HallOfFame) Size() int {
	hof.mu.RLock()
	defer hof.mu.RUnlock()
	return len(hof.entries)
}

// TopFitness returns the best fitness, or 0 if the hall is empty.
func (hof *HallOfFame) TopFitness() float64 {
	hof.mu.RLock()
	defer hof.mu.RUnlock()
	if len(hof.entries) == 0 {
		return 0
	}
	return hof.entries[0].Fitness
}

// Entries returns a copy of the entries, best first.
func (hof *HallOfFame) Entries() []HallEntry {
	hof.mu.RLock()
	defer hof.mu.RUnlock()
	out := make([]HallEntry, len(hof.entries))
	copy(out, hof.entries)
	return out
}

// MarshalJSON serializes the entries, best first.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(hof.Entries(), "", "  ")
}

// LoadHallOfFameFromFile reads a hall of fame JSON file. Entries beyond
// maxSize are dropped.
func LoadHallOfFameFromFile(path string, maxSize int, weights config.HallOfFameConfig) (*HallOfFame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hall of fame: %w", err)
	}

	var entries []HallEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing hall of fame JSON: %w", err)
	}

	hof := NewHallOfFame(maxSize, weights)
	for _, e := range entries {
		hof.entries = hof.insertEntry(hof.entries, e)
	}
	return hof, nil
}
