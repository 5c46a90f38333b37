package telemetry

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/selection"
	"github.com/pthm-cable/ecosys/sim"
	"github.com/pthm-cable/ecosys/systems"
)

func newTestSim(t *testing.T) *sim.Simulator {
	t.Helper()
	s, err := sim.New(config.Cfg(), rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	return s
}

func blueprint(t *testing.T, s *sim.Simulator, kind components.Kind, pos *r2.Vec) *components.Animal {
	t.Helper()
	species := systems.NewSpeciesRegistry(s.Config())
	a, err := systems.NewAnimal(species.Get(kind), &s.Config().Animals, selection.Closest{}, selection.Closest{}, pos, s.Rand())
	if err != nil {
		t.Fatalf("NewAnimal: %v", err)
	}
	return a
}

func populate(t *testing.T, s *sim.Simulator, sheep, wolves int) {
	t.Helper()
	for i := 0; i < sheep; i++ {
		s.AddAnimal(blueprint(t, s, components.KindSheep, nil))
	}
	for i := 0; i < wolves; i++ {
		s.AddAnimal(blueprint(t, s, components.KindWolf, nil))
	}
}

// memSink keeps everything it is given.
type memSink struct {
	windows   []WindowStats
	bookmarks []Bookmark
	snapshots []*Snapshot
}

func (m *memSink) WriteTelemetry(s WindowStats) error {
	m.windows = append(m.windows, s)
	return nil
}

func (m *memSink) WriteBookmark(b Bookmark) error {
	m.bookmarks = append(m.bookmarks, b)
	return nil
}

func (m *memSink) WriteSnapshot(s *Snapshot) error {
	m.snapshots = append(m.snapshots, s)
	return nil
}
