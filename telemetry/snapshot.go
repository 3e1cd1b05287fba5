package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/turtle"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot is a saved stable: the active roster and the retired pool.
type Snapshot struct {
	Version int   `json:"version"`
	RNGSeed int64 `json:"rng_seed"`
	Races   int   `json:"races"`
	Money   int   `json:"money"`

	Roster  []turtle.Record `json:"roster"`
	Retired []turtle.Record `json:"retired"`
}

// NewSnapshot captures the given turtles. Nil roster slots are skipped.
func NewSnapshot(seed int64, races, money int, roster, retired []*turtle.Turtle) *Snapshot {
	s := &Snapshot{
		Version: SnapshotVersion,
		RNGSeed: seed,
		Races:   races,
		Money:   money,
		Roster:  []turtle.Record{},
		Retired: []turtle.Record{},
	}
	for _, t := range roster {
		if t != nil {
			s.Roster = append(s.Roster, t.Record())
		}
	}
	for _, t := range retired {
		if t != nil {
			s.Retired = append(s.Retired, t.Record())
		}
	}
	return s
}

// Restore rebuilds the turtles, validating every record against schema.
func (s *Snapshot) Restore(schema *genetics.Schema) (roster, retired []*turtle.Turtle, err error) {
	for i, rec := range s.Roster {
		t, err := turtle.FromRecord(rec, schema)
		if err != nil {
			return nil, nil, fmt.Errorf("restore roster %d: %w", i, err)
		}
		roster = append(roster, t)
	}
	for i, rec := range s.Retired {
		t, err := turtle.FromRecord(rec, schema)
		if err != nil {
			return nil, nil, fmt.Errorf("restore retired %d: %w", i, err)
		}
		retired = append(retired, t)
	}
	return roster, retired, nil
}

// SaveSnapshot writes a snapshot into dir and returns its path.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", snapshot.Races))
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snapshot.Version)
	}
	return &snapshot, nil
}
