package telemetry

import (
	"log/slog"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/sim"
)

// Sink receives flushed windows and bookmarks.
type Sink interface {
	WriteTelemetry(WindowStats) error
	WriteBookmark(Bookmark) error
}

// SnapshotSink additionally stores bookmark snapshots.
type SnapshotSink interface {
	WriteSnapshot(*Snapshot) error
}

// Monitor collects telemetry from a simulator. Subscribe it as an
// observer and set it as the simulator's recorder.
type Monitor struct {
	sim.BaseObserver

	sim       *sim.Simulator
	seed      int64
	collector *Collector
	bookmarks *BookmarkDetector
	lifetimes *LifetimeTracker
	perf      *PerfCollector

	output   *OutputManager
	sinks    []Sink
	onWindow func(WindowStats)

	snapshotDir      string
	compressSnapshot bool
	logStats         bool

	windows int
}

var (
	_ sim.Observer = (*Monitor)(nil)
	_ sim.Recorder = (*Monitor)(nil)
)

// NewMonitor creates a monitor for s. seed is recorded in snapshots.
func NewMonitor(cfg *config.Config, s *sim.Simulator, seed int64) *Monitor {
	return &Monitor{
		sim:       s,
		seed:      seed,
		collector: NewCollector(cfg.Telemetry.StatsWindow),
		bookmarks: NewBookmarkDetector(cfg.Telemetry.BookmarkHistorySize, cfg.Bookmarks),
		lifetimes: NewLifetimeTracker(),
	}
}

// Attach subscribes the monitor to its simulator and installs it as the
// recorder. It returns the subscription handle.
func (m *Monitor) Attach() sim.Handle {
	m.sim.SetRecorder(m)
	return m.sim.Subscribe(m)
}

// SetPerf installs a perf collector as the simulator's phase timer.
func (m *Monitor) SetPerf(p *PerfCollector) {
	m.perf = p
	if p != nil {
		m.sim.SetPhaseTimer(p)
	} else {
		m.sim.SetPhaseTimer(nil)
	}
}

// SetOutput sets the CSV output manager.
func (m *Monitor) SetOutput(om *OutputManager) {
	m.output = om
}

// AddSink adds a receiver for windows and bookmarks.
func (m *Monitor) AddSink(s Sink) {
	m.sinks = append(m.sinks, s)
}

// OnWindow sets a callback run for every flushed window.
func (m *Monitor) OnWindow(fn func(WindowStats)) {
	m.onWindow = fn
}

// SetSnapshotDir enables saving a snapshot to dir on every bookmark.
func (m *Monitor) SetSnapshotDir(dir string, compress bool) {
	m.snapshotDir = dir
	m.compressSnapshot = compress
}

// SetLogStats enables logging of windows, perf and bookmarks.
func (m *Monitor) SetLogStats(on bool) {
	m.logStats = on
}

// Windows returns the number of windows flushed so far.
func (m *Monitor) Windows() int {
	return m.windows
}

// Lifetimes returns the tracker for animals currently alive.
func (m *Monitor) Lifetimes() *LifetimeTracker {
	return m.lifetimes
}

// OnRegister starts tracking the population already present.
func (m *Monitor) OnRegister(st sim.State) {
	m.restart(st)
}

// OnReset drops all tracking and starts a new window.
func (m *Monitor) OnReset(st sim.State) {
	m.restart(st)
}

func (m *Monitor) restart(st sim.State) {
	m.collector.Restart(st.Time)
	m.lifetimes.Reset()
	for _, a := range st.Population {
		m.lifetimes.Register(a, st.Time)
	}
}

// OnAnimalAdded starts a lifetime.
func (m *Monitor) OnAnimalAdded(st sim.State, a sim.AnimalInfo) {
	m.lifetimes.Register(a, st.Time)
}

// OnAdvanced updates lifetimes and flushes the window when it is due.
func (m *Monitor) OnAdvanced(st sim.State, _ float64) {
	m.collector.RecordStep()
	for _, a := range st.Population {
		m.lifetimes.Update(a)
	}
	if m.collector.ShouldFlush(st.Time) {
		m.flush(st)
	}
}

// Flush closes the current window early, for the tail of a run.
// Does nothing if no step was recorded since the last flush.
func (m *Monitor) Flush() {
	if m.collector.steps == 0 {
		return
	}
	m.flush(m.sim.State())
}

// RecordKill implements systems.Recorder.
func (m *Monitor) RecordKill(hunter, _ components.Identity) {
	m.collector.RecordKill()
	m.lifetimes.RecordKill(hunter.ID)
}

// RecordMating implements systems.Recorder.
func (m *Monitor) RecordMating(a, b components.Identity) {
	m.collector.RecordMating()
	m.lifetimes.RecordMating(a.ID)
	m.lifetimes.RecordMating(b.ID)
}

// RecordConception implements systems.Recorder.
func (m *Monitor) RecordConception(carrier components.Identity) {
	m.collector.RecordConception()
	m.lifetimes.RecordChild(carrier.ID)
}

// RecordBirth implements sim.Recorder.
func (m *Monitor) RecordBirth(a sim.AnimalInfo) {
	m.collector.RecordBirth(a.Kind)
}

// RecordDeath implements sim.Recorder and writes the finished lifetime.
func (m *Monitor) RecordDeath(a sim.AnimalInfo) {
	m.collector.RecordDeath(a.Kind, a.Cause)
	ls := m.lifetimes.Remove(a, m.sim.Time())
	if ls == nil {
		return
	}
	if err := m.output.WriteLifetime(*ls); err != nil {
		slog.Error("failed to write lifetime", "error", err)
	}
}

// flush closes the window and handles bookmarks.
func (m *Monitor) flush(st sim.State) {
	stats := m.collector.Flush(st.Time, st.Population, st.Map.Regions)
	m.windows++

	if m.onWindow != nil {
		m.onWindow(stats)
	}

	if m.logStats {
		stats.LogStats()
	}
	if err := m.output.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	for _, s := range m.sinks {
		if err := s.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
	}

	if m.perf != nil {
		perfStats := m.perf.Stats()
		if m.logStats {
			perfStats.LogStats()
		}
		if err := m.output.WritePerf(perfStats, stats.WindowEnd); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	for _, bm := range m.bookmarks.Check(stats) {
		if m.logStats {
			bm.LogBookmark()
		}
		if err := m.output.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
		for _, s := range m.sinks {
			if err := s.WriteBookmark(bm); err != nil {
				slog.Error("failed to write bookmark", "error", err)
			}
		}
		m.saveSnapshot(&bm)
	}
}

// saveSnapshot stores a snapshot of the current state in the snapshot
// directory and in every sink that keeps snapshots.
func (m *Monitor) saveSnapshot(bookmark *Bookmark) {
	var snapSinks []SnapshotSink
	for _, s := range m.sinks {
		if ss, ok := s.(SnapshotSink); ok {
			snapSinks = append(snapSinks, ss)
		}
	}
	if m.snapshotDir == "" && len(snapSinks) == 0 {
		return
	}

	snapshot := NewSnapshot(m.sim, m.seed, bookmark)
	snapshot.Lifetimes = m.lifetimes.All()

	if m.snapshotDir != "" {
		path, err := SaveSnapshot(snapshot, m.snapshotDir, m.compressSnapshot)
		if err != nil {
			slog.Error("failed to save snapshot", "error", err)
		} else {
			slog.Info("snapshot saved", "path", path, "sim_time", snapshot.Time)
		}
	}
	for _, ss := range snapSinks {
		if err := ss.WriteSnapshot(snapshot); err != nil {
			slog.Error("failed to archive snapshot", "error", err)
		}
	}
}
