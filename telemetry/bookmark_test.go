package telemetry

import "testing"

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, b := range bookmarks {
		if b.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_PhotoFinish(t *testing.T) {
	bd := NewBookmarkDetector(10)

	got := bd.Check(RaceStats{Race: 1, Entrants: 2, Finishers: 2, Winner: "A", Margin: 0})
	if !hasBookmark(got, BookmarkPhotoFinish) {
		t.Error("expected photo_finish bookmark")
	}

	got = bd.Check(RaceStats{Race: 2, Entrants: 2, Finishers: 1, Winner: "A", Margin: -1})
	if hasBookmark(got, BookmarkPhotoFinish) {
		t.Error("single finisher should not be a photo finish")
	}
}

func TestBookmarkDetector_Marathon(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := range 3 {
		bd.Check(RaceStats{Race: i, Entrants: 4, Finishers: 4, Ticks: 100, Margin: 5})
	}

	if got := bd.Check(RaceStats{Race: 3, Entrants: 4, Finishers: 4, Ticks: 150, Margin: 5}); hasBookmark(got, BookmarkMarathon) {
		t.Error("150 ticks against a 100 average should not trigger")
	}
	got := bd.Check(RaceStats{Race: 4, Entrants: 4, Finishers: 4, Ticks: 400, Margin: 5})
	if !hasBookmark(got, BookmarkMarathon) {
		t.Error("expected marathon bookmark")
	}
	if got[0].Race != 4 {
		t.Errorf("bookmark race = %d, want 4", got[0].Race)
	}
}

func TestBookmarkDetector_MarathonNeedsHistory(t *testing.T) {
	bd := NewBookmarkDetector(10)
	bd.Check(RaceStats{Ticks: 10, Margin: -1})

	if got := bd.Check(RaceStats{Ticks: 1000, Margin: -1}); hasBookmark(got, BookmarkMarathon) {
		t.Error("marathon triggered without enough history")
	}
}

func TestBookmarkDetector_UpsetAndStalled(t *testing.T) {
	bd := NewBookmarkDetector(5)

	got := bd.Check(RaceStats{Entrants: 3, Finishers: 3, SpeedRankCorr: 0.9, Margin: 3})
	if !hasBookmark(got, BookmarkUpset) {
		t.Error("expected upset bookmark")
	}

	got = bd.Check(RaceStats{Entrants: 3, Finishers: 0, Ticks: 5000, Margin: -1})
	if !hasBookmark(got, BookmarkStalled) {
		t.Error("expected stalled bookmark")
	}
	if hasBookmark(got, BookmarkUpset) {
		t.Error("race without finishers cannot be an upset")
	}
}

func TestBookmarkDetector_HistoryWraps(t *testing.T) {
	bd := NewBookmarkDetector(3)
	for i := range 7 {
		bd.Check(RaceStats{Race: i, Ticks: 100, Margin: -1})
	}
	if n := len(bd.getHistory()); n != 3 {
		t.Errorf("history length = %d, want 3", n)
	}
}
