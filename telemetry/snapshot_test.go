package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/shellrace/turtle"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	active := veteran(t, "Active", 1, 2)
	active.Age = 4
	retired := veteran(t, "Old", 3)
	retired.Active = false

	snapshot := NewSnapshot(42, 12, 150, []*turtle.Turtle{active, nil}, []*turtle.Turtle{retired})
	if len(snapshot.Roster) != 1 {
		t.Fatalf("roster = %d records, want 1 (nil slots skipped)", len(snapshot.Roster))
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if filepath.Base(path) != "snapshot_12.json" {
		t.Errorf("path = %s", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded.Version != SnapshotVersion || loaded.RNGSeed != 42 || loaded.Races != 12 || loaded.Money != 150 {
		t.Errorf("header = %+v", loaded)
	}

	roster, pool, err := loaded.Restore(nil)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if len(roster) != 1 || len(pool) != 1 {
		t.Fatalf("restored %d active, %d retired", len(roster), len(pool))
	}

	got := roster[0]
	if got.ID != active.ID || got.Name != "Active" || got.Age != 4 || got.Stats() != active.Stats() {
		t.Errorf("restored turtle = %+v", got.Record())
	}
	if got.TotalRaces() != 2 || got.Wins() != 1 {
		t.Errorf("history = %d races, %d wins", got.TotalRaces(), got.Wins())
	}
	if pool[0].Active {
		t.Error("retired turtle restored as active")
	}
}

func TestLoadSnapshotRejectsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	data, _ := json.Marshal(Snapshot{Version: SnapshotVersion + 1})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := LoadSnapshot(path); err == nil {
		t.Error("expected version error")
	}
}

func TestSnapshotRestoreRejectsInvalidRecord(t *testing.T) {
	rec := veteran(t, "Broken", 1).Record()
	rec.Speed = -1

	s := &Snapshot{Version: SnapshotVersion, Roster: []turtle.Record{rec}}
	if _, _, err := s.Restore(nil); err == nil {
		t.Error("expected validation error")
	}
}

func TestSnapshotJSONShape(t *testing.T) {
	s := NewSnapshot(1, 0, 0, nil, nil)
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"version", "rng_seed", "races", "money", "roster", "retired"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if string(raw["roster"]) != "[]" {
		t.Errorf("empty roster encoded as %s, want []", raw["roster"])
	}
}
