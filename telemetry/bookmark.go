package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkPhotoFinish BookmarkType = "photo_finish"
	BookmarkUpset       BookmarkType = "upset"
	BookmarkMarathon    BookmarkType = "marathon"
	BookmarkStalled     BookmarkType = "stalled"
)

// Bookmark marks a race worth a second look.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Race        int          `csv:"race"`
	RaceID      string       `csv:"race_id"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"race", b.Race,
		"description", b.Description,
	)
}

// BookmarkDetector flags notable races against a rolling history.
type BookmarkDetector struct {
	history     []RaceStats
	historySize int
	historyIdx  int
	historyFull bool
}

// NewBookmarkDetector creates a detector remembering historySize races.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		history:     make([]RaceStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes one race and returns any triggered bookmarks. The race is
// added to the history afterwards.
func (bd *BookmarkDetector) Check(rs RaceStats) []Bookmark {
	var bookmarks []Bookmark
	for _, check := range []func(RaceStats) *Bookmark{
		bd.checkPhotoFinish,
		bd.checkUpset,
		bd.checkMarathon,
		bd.checkStalled,
	} {
		if b := check(rs); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}
	bd.addToHistory(rs)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(rs RaceStats) {
	bd.history[bd.historyIdx] = rs
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []RaceStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkPhotoFinish(rs RaceStats) *Bookmark {
	if rs.Margin != 0 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkPhotoFinish,
		Race:        rs.Race,
		RaceID:      rs.RaceID,
		Description: fmt.Sprintf("%s won on the same tick as the runner-up", rs.Winner),
	}
}

// Slower turtles placing better on the whole is unusual enough to note.
func (bd *BookmarkDetector) checkUpset(rs RaceStats) *Bookmark {
	if rs.Finishers < 2 || rs.SpeedRankCorr <= 0.3 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkUpset,
		Race:        rs.Race,
		RaceID:      rs.RaceID,
		Description: fmt.Sprintf("speed/rank correlation %.2f, winner %s at speed %.1f", rs.SpeedRankCorr, rs.Winner, rs.WinnerSpeed),
	}
}

func (bd *BookmarkDetector) checkMarathon(rs RaceStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Ticks
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 || float64(rs.Ticks) <= avg*2 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkMarathon,
		Race:        rs.Race,
		RaceID:      rs.RaceID,
		Description: fmt.Sprintf("%d ticks is %.1fx the recent average (%.0f)", rs.Ticks, float64(rs.Ticks)/avg, avg),
	}
}

func (bd *BookmarkDetector) checkStalled(rs RaceStats) *Bookmark {
	if rs.Entrants == 0 || rs.Finishers > 0 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkStalled,
		Race:        rs.Race,
		RaceID:      rs.RaceID,
		Description: fmt.Sprintf("none of %d entrants finished in %d ticks", rs.Entrants, rs.Ticks),
	}
}
