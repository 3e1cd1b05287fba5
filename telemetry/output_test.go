package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/shellrace/config"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v; want nil, nil", om, err)
	}
	// Every method is a no-op on the nil manager
	if err := om.WriteRace(RaceStats{}); err != nil {
		t.Errorf("WriteRace on nil manager: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("Close on nil manager: %v", err)
	}
	if om.Dir() != "" {
		t.Error("nil manager has a directory")
	}
}

func TestOutputManagerHeaderWrittenOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := om.WriteRace(RaceStats{Race: i, Course: "linear", Margin: -1}); err != nil {
			t.Fatalf("WriteRace failed: %v", err)
		}
	}
	sim, _, _ := finishedRace(t)
	if err := om.WriteResults(ResultRows(1, sim.ID.String(), sim.Results(), nil)); err != nil {
		t.Fatalf("WriteResults failed: %v", err)
	}
	if err := om.WriteResults(nil); err != nil {
		t.Fatalf("WriteResults(nil) failed: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	races := readLines(t, filepath.Join(dir, "races.csv"))
	if len(races) != 4 {
		t.Fatalf("races.csv has %d lines, want header + 3", len(races))
	}
	if !strings.HasPrefix(races[0], "race,race_id,seed,course,ticks") {
		t.Errorf("races header = %q", races[0])
	}
	for _, line := range races[1:] {
		if strings.HasPrefix(line, "race,") {
			t.Errorf("header repeated: %q", line)
		}
	}

	results := readLines(t, filepath.Join(dir, "results.csv"))
	if len(results) != 3 {
		t.Errorf("results.csv has %d lines, want header + 2", len(results))
	}
}

func TestOutputManagerJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager failed: %v", err)
	}
	defer om.Close()

	if err := om.WriteConfig(config.Default()); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}
	if _, err := config.Load(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("written config does not load: %v", err)
	}

	hof := NewHallOfFame(3, testWeights)
	hof.Consider(veteran(t, "Champ", 1))
	if err := om.WriteHallOfFame(hof); err != nil {
		t.Fatalf("WriteHallOfFame failed: %v", err)
	}
	loaded, err := LoadHallOfFameFromFile(filepath.Join(dir, "hall_of_fame.json"), 3, testWeights)
	if err != nil {
		t.Fatalf("reloading hall of fame: %v", err)
	}
	if loaded.Size() != 1 {
		t.Errorf("reloaded hall size = %d, want 1", loaded.Size())
	}
}
