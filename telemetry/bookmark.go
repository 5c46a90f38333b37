package telemetry

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/ecosys/config"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkHuntBreakthrough BookmarkType = "hunt_breakthrough"
	BookmarkPredatorRecovery BookmarkType = "predator_recovery"
	BookmarkPreyCrash        BookmarkType = "prey_crash"
	BookmarkStableEcosystem  BookmarkType = "stable_ecosystem"
	BookmarkExtinction       BookmarkType = "extinction"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Time        float64      `csv:"sim_time" json:"time"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"sim_time", b.Time,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	cfg config.BookmarksConfig

	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	recentPredMin      int // minimum wolf count since the last recovery
	recentPreyPeak     int // peak sheep count since the last crash
	stableWindowsCount int // consecutive windows with stable populations
	sheepExtinct       bool
	wolvesExtinct      bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int, cfg config.BookmarksConfig) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable ecosystem detection
	}
	return &BookmarkDetector{
		cfg:           cfg,
		history:       make([]WindowStats, historySize),
		historySize:   historySize,
		recentPredMin: -1,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		for _, check := range []func(WindowStats) *Bookmark{
			bd.checkHuntBreakthrough,
			bd.checkPredatorRecovery,
			bd.checkPreyCrash,
			bd.checkStableEcosystem,
		} {
			if b := check(stats); b != nil {
				bookmarks = append(bookmarks, *b)
			}
		}
	}
	bookmarks = append(bookmarks, bd.checkExtinction(stats)...)

	bd.addToHistory(stats)

	if bd.recentPredMin < 0 || stats.Wolves < bd.recentPredMin {
		bd.recentPredMin = stats.Wolves
	}
	if stats.Sheep > bd.recentPreyPeak {
		bd.recentPreyPeak = stats.Sheep
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// getHistory returns the stored windows, oldest first.
func (bd *BookmarkDetector) getHistory() []WindowStats {
	if !bd.historyFull {
		return bd.history[:bd.historyIdx]
	}
	out := make([]WindowStats, 0, bd.historySize)
	out = append(out, bd.history[bd.historyIdx:]...)
	return append(out, bd.history[:bd.historyIdx]...)
}

func (bd *BookmarkDetector) checkHuntBreakthrough(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 || stats.Wolves == 0 {
		return nil
	}

	var sum float64
	for _, h := range history {
		sum += h.KillsPerWolf
	}
	avg := sum / float64(len(history))
	if avg == 0 {
		return nil
	}

	if stats.KillsPerWolf > avg*2 && stats.Kills >= 3 {
		return &Bookmark{
			Type:        BookmarkHuntBreakthrough,
			Time:        stats.WindowEnd,
			Description: fmt.Sprintf("Kills per wolf %.2f is %.1fx average (%.2f)", stats.KillsPerWolf, stats.KillsPerWolf/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkPredatorRecovery(stats WindowStats) *Bookmark {
	c := bd.cfg.PredatorRecovery
	if bd.recentPredMin <= 0 || bd.recentPredMin > c.MinPopulation {
		return nil
	}

	if stats.Wolves >= bd.recentPredMin*c.RecoveryMultiplier && stats.Wolves >= c.MinFinal {
		oldMin := bd.recentPredMin
		bd.recentPredMin = stats.Wolves
		return &Bookmark{
			Type:        BookmarkPredatorRecovery,
			Time:        stats.WindowEnd,
			Description: fmt.Sprintf("Wolf population recovered from %d to %d", oldMin, stats.Wolves),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkPreyCrash(stats WindowStats) *Bookmark {
	c := bd.cfg.PreyCrash
	if bd.recentPreyPeak == 0 {
		return nil
	}

	drop := 1 - float64(stats.Sheep)/float64(bd.recentPreyPeak)
	if drop > c.DropPercent && stats.Sheep < bd.recentPreyPeak-c.MinDrop {
		oldPeak := bd.recentPreyPeak
		bd.recentPreyPeak = stats.Sheep
		return &Bookmark{
			Type:        BookmarkPreyCrash,
			Time:        stats.WindowEnd,
			Description: fmt.Sprintf("Sheep crashed %.0f%% from peak %d to %d", drop*100, oldPeak, stats.Sheep),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkStableEcosystem(stats WindowStats) *Bookmark {
	c := bd.cfg.StableEcosystem
	if stats.Sheep < c.MinPrey || stats.Wolves < c.MinPred {
		bd.stableWindowsCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}
	recent := history[len(history)-4:]

	// Squared coefficient of variation against the squared threshold
	limit := c.CVThreshold * c.CVThreshold
	if cv2(recent, func(w WindowStats) int { return w.Sheep }) < limit &&
		cv2(recent, func(w WindowStats) int { return w.Wolves }) < limit {
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == c.StableWindows {
		return &Bookmark{
			Type:        BookmarkStableEcosystem,
			Time:        stats.WindowEnd,
			Description: fmt.Sprintf("Stable ecosystem with %d sheep, %d wolves over %d+ windows", stats.Sheep, stats.Wolves, c.StableWindows),
		}
	}
	return nil
}

// checkExtinction fires once when a species that was present dies out,
// and rearms if it reappears.
func (bd *BookmarkDetector) checkExtinction(stats WindowStats) []Bookmark {
	var out []Bookmark
	prevSheep, prevWolves := bd.previous()
	if stats.Sheep == 0 && prevSheep > 0 && !bd.sheepExtinct {
		bd.sheepExtinct = true
		out = append(out, Bookmark{Type: BookmarkExtinction, Time: stats.WindowEnd, Description: "Sheep died out"})
	}
	if stats.Wolves == 0 && prevWolves > 0 && !bd.wolvesExtinct {
		bd.wolvesExtinct = true
		out = append(out, Bookmark{Type: BookmarkExtinction, Time: stats.WindowEnd, Description: "Wolves died out"})
	}
	if stats.Sheep > 0 {
		bd.sheepExtinct = false
	}
	if stats.Wolves > 0 {
		bd.wolvesExtinct = false
	}
	return out
}

// previous returns the populations of the latest stored window.
func (bd *BookmarkDetector) previous() (sheep, wolves int) {
	if !bd.historyFull && bd.historyIdx == 0 {
		return 0, 0
	}
	last := bd.history[(bd.historyIdx-1+bd.historySize)%bd.historySize]
	return last.Sheep, last.Wolves
}

func cv2(ws []WindowStats, field func(WindowStats) int) float64 {
	var sum float64
	for _, w := range ws {
		sum += float64(field(w))
	}
	mean := sum / float64(len(ws))
	if mean == 0 {
		return 0
	}
	var v float64
	for _, w := range ws {
		d := float64(field(w)) - mean
		v += d * d
	}
	v /= float64(len(ws))
	return v / (mean * mean)
}
