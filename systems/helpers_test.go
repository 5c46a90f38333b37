package systems

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/selection"
)

// testWorld wires a store, region manager and behaviour over the default config.
type testWorld struct {
	cfg      *config.Config
	rng      *rand.Rand
	store    *Store
	regions  *RegionManager
	behavior *Behavior
	species  *SpeciesRegistry
}

var configOnce sync.Once

func newTestWorld(t *testing.T, seed int64) *testWorld {
	t.Helper()
	configOnce.Do(func() { config.MustInit("") })
	cfg := config.Cfg()
	store := NewStore()
	regions, err := NewRegionManager(cfg.World.Cols, cfg.World.Rows, cfg.World.Width, cfg.World.Height, store, func() Region {
		return NewDefaultRegion(&cfg.Regions)
	})
	if err != nil {
		t.Fatalf("NewRegionManager: %v", err)
	}
	rng := rand.New(rand.NewSource(seed))
	return &testWorld{
		cfg:      cfg,
		rng:      rng,
		store:    store,
		regions:  regions,
		behavior: NewBehavior(store, regions, cfg, rng),
		species:  NewSpeciesRegistry(cfg),
	}
}

// spawn creates and registers an animal of the given kind at pos.
// edit may adjust the blueprint before it is spawned.
func (w *testWorld) spawn(t *testing.T, kind components.Kind, pos r2.Vec, edit func(*components.Animal)) ecs.Entity {
	t.Helper()
	a, err := NewAnimal(w.species.Get(kind), &w.cfg.Animals, selection.Closest{}, selection.Closest{}, &pos, w.rng)
	if err != nil {
		t.Fatalf("NewAnimal: %v", err)
	}
	if edit != nil {
		edit(a)
	}
	e := w.store.Spawn(a)
	w.regions.Register(e, w.rng)
	return e
}

// step updates every tracked animal once and reconciles it, in order.
func (w *testWorld) step(dt float64) {
	for _, e := range append([]ecs.Entity(nil), w.regions.Tracked()...) {
		w.behavior.Update(e, dt)
		w.regions.Reconcile(e)
	}
}

// recorder counts behaviour events and keeps the carrier of each conception.
type recorder struct {
	kills, matings int
	carriers       []components.Identity
}

func (r *recorder) RecordKill(hunter, prey components.Identity)  { r.kills++ }
func (r *recorder) RecordMating(a, b components.Identity)        { r.matings++ }
func (r *recorder) RecordConception(carrier components.Identity) { r.carriers = append(r.carriers, carrier) }
