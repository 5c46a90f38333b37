package telemetry

import (
	"testing"

	"github.com/pthm-cable/ecosys/config"
)

func init() {
	config.MustInit("")
}

func newDetector() *BookmarkDetector {
	cfg := config.Cfg()
	return NewBookmarkDetector(cfg.Telemetry.BookmarkHistorySize, cfg.Bookmarks)
}

func hasBookmark(bms []Bookmark, typ BookmarkType) bool {
	for _, bm := range bms {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_HuntBreakthrough(t *testing.T) {
	bd := newDetector()

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{
			WindowEnd:    float64(i) * 1.5,
			Sheep:        100,
			Wolves:       10,
			Kills:        2,
			KillsPerWolf: 0.2,
		})
	}

	bms := bd.Check(WindowStats{
		WindowEnd:    7.5,
		Sheep:        100,
		Wolves:       10,
		Kills:        8,
		KillsPerWolf: 0.8,
	})
	if !hasBookmark(bms, BookmarkHuntBreakthrough) {
		t.Errorf("expected hunt_breakthrough, got %v", bms)
	}
}

func TestBookmarkDetector_PreyCrash(t *testing.T) {
	bd := newDetector()

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEnd: float64(i), Sheep: 100, Wolves: 10})
	}

	bms := bd.Check(WindowStats{WindowEnd: 5, Sheep: 50, Wolves: 10})
	if !hasBookmark(bms, BookmarkPreyCrash) {
		t.Fatalf("expected prey_crash, got %v", bms)
	}

	// The peak resets after a crash, so a further small dip is quiet.
	if bms := bd.Check(WindowStats{WindowEnd: 6, Sheep: 45, Wolves: 10}); hasBookmark(bms, BookmarkPreyCrash) {
		t.Error("crash reported twice")
	}
}

func TestBookmarkDetector_PreyCrashNeedsAbsoluteDrop(t *testing.T) {
	bd := newDetector()
	for i := 0; i < 3; i++ {
		bd.Check(WindowStats{WindowEnd: float64(i), Sheep: 12, Wolves: 3})
	}
	// 50% but only 6 animals, under the configured minimum drop.
	if bms := bd.Check(WindowStats{WindowEnd: 3, Sheep: 6, Wolves: 3}); hasBookmark(bms, BookmarkPreyCrash) {
		t.Error("small populations should not report a crash")
	}
}

func TestBookmarkDetector_PredatorRecovery(t *testing.T) {
	bd := newDetector()

	for i := 0; i < 3; i++ {
		bd.Check(WindowStats{WindowEnd: float64(i), Sheep: 100, Wolves: 2})
	}

	bms := bd.Check(WindowStats{WindowEnd: 3, Sheep: 100, Wolves: 10})
	if !hasBookmark(bms, BookmarkPredatorRecovery) {
		t.Errorf("expected predator_recovery, got %v", bms)
	}
}

func TestBookmarkDetector_StableEcosystem(t *testing.T) {
	bd := newDetector()
	want := config.Cfg().Bookmarks.StableEcosystem.StableWindows

	fired := 0
	firstAt := -1
	for i := 0; i < 20; i++ {
		bms := bd.Check(WindowStats{WindowEnd: float64(i), Sheep: 100, Wolves: 20})
		if hasBookmark(bms, BookmarkStableEcosystem) {
			fired++
			if firstAt < 0 {
				firstAt = i
			}
		}
	}
	if fired != 1 {
		t.Fatalf("stable_ecosystem fired %d times, want once", fired)
	}
	// Four windows of history are needed before counting starts.
	if firstAt != 4+want-1 {
		t.Errorf("fired at window %d, want %d", firstAt, 4+want-1)
	}
}

func TestBookmarkDetector_StableEcosystemNeedsBothSpecies(t *testing.T) {
	bd := newDetector()
	for i := 0; i < 20; i++ {
		if bms := bd.Check(WindowStats{WindowEnd: float64(i), Sheep: 100, Wolves: 1}); hasBookmark(bms, BookmarkStableEcosystem) {
			t.Fatal("stable ecosystem reported without enough wolves")
		}
	}
}

func TestBookmarkDetector_Extinction(t *testing.T) {
	bd := newDetector()

	if bms := bd.Check(WindowStats{Sheep: 0, Wolves: 0}); len(bms) != 0 {
		t.Errorf("empty world on the first window: %v", bms)
	}
	bd.Check(WindowStats{WindowEnd: 1, Sheep: 5, Wolves: 2})

	bms := bd.Check(WindowStats{WindowEnd: 2, Sheep: 4, Wolves: 0})
	if len(bms) != 1 || bms[0].Type != BookmarkExtinction || bms[0].Description != "Wolves died out" {
		t.Fatalf("bookmarks = %v", bms)
	}
	if bms := bd.Check(WindowStats{WindowEnd: 3, Sheep: 4, Wolves: 0}); hasBookmark(bms, BookmarkExtinction) {
		t.Error("extinction reported twice")
	}
}
