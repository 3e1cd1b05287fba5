package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/shellrace/config"
)

// csvFile is an output file that writes its header with the first records.
type csvFile struct {
	name          string
	f             *os.File
	headerWritten bool
}

func writeRecords[T any](cf *csvFile, records []T) error {
	if len(records) == 0 {
		return nil
	}
	var err error
	if !cf.headerWritten {
		err = gocsv.Marshal(records, cf.f)
		cf.headerWritten = err == nil
	} else {
		err = gocsv.MarshalWithoutHeaders(records, cf.f)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", cf.name, err)
	}
	return nil
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir string

	races     *csvFile
	results   *csvFile
	perf      *csvFile
	windows   *csvFile
	bookmarks *csvFile
}

// NewOutputManager creates the output directory and its CSV files.
// Returns nil if dir is empty (output disabled); every method is a no-op on
// a nil manager.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	for _, slot := range []struct {
		dst  **csvFile
		name string
	}{
		{&om.races, "races.csv"},
		{&om.results, "results.csv"},
		{&om.perf, "perf.csv"},
		{&om.windows, "windows.csv"},
		{&om.bookmarks, "bookmarks.csv"},
	} {
		f, err := os.Create(filepath.Join(dir, slot.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", slot.name, err)
		}
		*slot.dst = &csvFile{name: slot.name, f: f}
	}
	return om, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteRace appends a race summary to races.csv.
func (om *OutputManager) WriteRace(stats RaceStats) error {
	if om == nil {
		return nil
	}
	return writeRecords(om.races, []RaceStats{stats})
}

// WriteResults appends per-entrant rows to results.csv.
func (om *OutputManager) WriteResults(rows []ResultRow) error {
	if om == nil {
		return nil
	}
	return writeRecords(om.results, rows)
}

// WritePerf appends the perf window for race raceIndex to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, raceIndex int) error {
	if om == nil {
		return nil
	}
	return writeRecords(om.perf, []PerfStatsCSV{stats.ToCSV(raceIndex)})
}

// WriteWindow appends a window summary to windows.csv.
func (om *OutputManager) WriteWindow(stats WindowStats) error {
	if om == nil {
		return nil
	}
	return writeRecords(om.windows, []WindowStats{stats})
}

// WriteBookmark appends a bookmark to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	return writeRecords(om.bookmarks, []Bookmark{b})
}

// WriteHallOfFame saves the hall of fame as JSON.
func (om *OutputManager) WriteHallOfFame(hof *HallOfFame) error {
	if om == nil || hof == nil {
		return nil
	}

	data, err := hof.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling hall of fame: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "hall_of_fame.json"), data, 0644); err != nil {
		return fmt.Errorf("writing hall_of_fame.json: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes all output files and returns the first error.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, cf := range []*csvFile{om.races, om.results, om.perf, om.windows, om.bookmarks} {
		if cf == nil {
			continue
		}
		if err := cf.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
