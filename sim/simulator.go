// Package sim runs the ecosystem. A Simulator owns the population and the
// region grid, advances them in fixed steps, and notifies observers.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/systems"
)

// Step phases reported to a PhaseTimer.
const (
	PhaseReap    = "reap"
	PhaseUpdate  = "update"
	PhaseDeliver = "deliver"
	PhaseRegions = "regions"
	PhaseNotify  = "notify"
)

// PhaseTimer times the phases of a step.
type PhaseTimer interface {
	StartTick()
	StartPhase(phase string)
	EndTick()
}

// Recorder receives population changes on top of the interactions
// reported by the behaviour system.
type Recorder interface {
	systems.Recorder
	RecordBirth(a AnimalInfo)
	RecordDeath(a AnimalInfo)
}

// Simulator advances a population of animals over a region grid.
// It is not safe for concurrent use.
type Simulator struct {
	cfg *config.Config
	rng *rand.Rand

	store    *systems.Store
	regions  *systems.RegionManager
	behavior *systems.Behavior

	time   float64
	nextID uint32

	observers bus
	timer     PhaseTimer
	rec       Recorder
}

// New creates a simulator with the configured map, every cell holding a
// default region. All randomness is drawn from rng.
func New(cfg *config.Config, rng *rand.Rand) (*Simulator, error) {
	s := &Simulator{cfg: cfg, rng: rng}
	if err := s.build(cfg.World.Cols, cfg.World.Rows, cfg.World.Width, cfg.World.Height); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulator) build(cols, rows, width, height int) error {
	store := systems.NewStore()
	regions, err := systems.NewRegionManager(cols, rows, width, height, store, s.defaultRegion)
	if err != nil {
		return fmt.Errorf("building region manager: %w", err)
	}
	s.store = store
	s.regions = regions
	s.behavior = systems.NewBehavior(store, regions, s.cfg, s.rng)
	s.behavior.SetRecorder(s.rec)
	return nil
}

func (s *Simulator) defaultRegion() systems.Region {
	return systems.NewDefaultRegion(&s.cfg.Regions)
}

// SetPhaseTimer sets the timer for step phases. nil disables timing.
func (s *Simulator) SetPhaseTimer(t PhaseTimer) {
	s.timer = t
}

// SetRecorder sets the recorder for births, deaths and interactions.
func (s *Simulator) SetRecorder(r Recorder) {
	s.rec = r
	s.behavior.SetRecorder(r)
}

// Config returns the configuration the simulator was built with.
func (s *Simulator) Config() *config.Config { return s.cfg }

// Rand returns the simulator's random source.
func (s *Simulator) Rand() *rand.Rand { return s.rng }

// Time returns the simulated time in seconds.
func (s *Simulator) Time() float64 { return s.time }

// Len returns the number of animals in the population, dead or alive.
func (s *Simulator) Len() int { return len(s.regions.Tracked()) }

// Advance moves the simulation forward by dt. Animals dead at the start
// of the step are removed, the rest are updated in insertion order, and
// offspring conceived before the step are delivered after it.
func (s *Simulator) Advance(dt float64) {
	if s.timer != nil {
		s.timer.StartTick()
	}
	s.time += dt

	s.phase(PhaseReap)
	var dead, pregnant []ecs.Entity
	for _, e := range s.regions.Tracked() {
		switch {
		case s.store.Vitals(e).Dead():
			dead = append(dead, e)
		case s.store.Bonds(e).Offspring != nil:
			pregnant = append(pregnant, e)
		}
	}
	for _, e := range dead {
		s.remove(e)
	}

	s.phase(PhaseUpdate)
	for _, e := range s.regions.Tracked() {
		s.behavior.Update(e, dt)
		s.regions.Reconcile(e)
	}

	s.phase(PhaseDeliver)
	for _, e := range pregnant {
		bonds := s.store.Bonds(e)
		baby := bonds.Offspring
		bonds.Offspring = nil
		if baby == nil {
			continue
		}
		child := s.add(baby)
		if s.rec != nil {
			s.rec.RecordBirth(animalInfo(s.store, child))
		}
	}

	s.phase(PhaseRegions)
	s.regions.UpdateRegions(dt, s.rng)

	s.phase(PhaseNotify)
	if !s.observers.empty() {
		st := s.State()
		s.observers.each(func(o Observer) { o.OnAdvanced(st, dt) })
	}

	if s.timer != nil {
		s.timer.EndTick()
	}
}

func (s *Simulator) phase(name string) {
	if s.timer != nil {
		s.timer.StartPhase(name)
	}
}

// remove reports the death of e and drops it from the world.
func (s *Simulator) remove(e ecs.Entity) {
	if s.rec != nil {
		s.rec.RecordDeath(animalInfo(s.store, e))
	}
	s.regions.Unregister(e)
	s.store.Despawn(e)
}

// AddAnimal spawns a copy of the blueprint, registers it on the map and
// notifies observers. The blueprint itself is not modified.
func (s *Simulator) AddAnimal(a *components.Animal) ecs.Entity {
	return s.add(a)
}

func (s *Simulator) add(a *components.Animal) ecs.Entity {
	bp := *a
	s.nextID++
	bp.Identity.ID = s.nextID

	e := s.store.Spawn(&bp)
	s.regions.Register(e, s.rng)

	if !s.observers.empty() {
		info := animalInfo(s.store, e)
		st := s.State()
		s.observers.each(func(o Observer) { o.OnAnimalAdded(st, info) })
	}
	return e
}

// SetRegion replaces the region at (row, col) and notifies observers.
func (s *Simulator) SetRegion(row, col int, r systems.Region) error {
	if err := s.regions.SetRegion(row, col, r); err != nil {
		return err
	}
	if !s.observers.empty() {
		m := s.Map()
		info := r.Info()
		s.observers.each(func(o Observer) { o.OnRegionSet(row, col, m, info) })
	}
	return nil
}

// DefaultMatrix sets every cell to a fresh default region.
func (s *Simulator) DefaultMatrix() {
	for row := 0; row < s.regions.Rows(); row++ {
		for col := 0; col < s.regions.Cols(); col++ {
			// In range by construction.
			_ = s.SetRegion(row, col, s.defaultRegion())
		}
	}
}

// Reset discards the population and the grid, starts a new map of the
// given size at time zero, and notifies observers. On error the
// simulator is left unchanged.
func (s *Simulator) Reset(cols, rows, width, height int) error {
	if err := s.build(cols, rows, width, height); err != nil {
		return err
	}
	s.time = 0
	if !s.observers.empty() {
		st := s.State()
		s.observers.each(func(o Observer) { o.OnReset(st) })
	}
	return nil
}

// Subscribe adds an observer and sends it the current state. Subscribing
// an observer twice returns its existing handle without notifying it.
// Observers are compared by identity, so use pointer types.
func (s *Simulator) Subscribe(o Observer) Handle {
	h, isNew := s.observers.add(o)
	if isNew {
		o.OnRegister(s.State())
	}
	return h
}

// Unsubscribe removes the observer with the given handle.
func (s *Simulator) Unsubscribe(h Handle) bool {
	return s.observers.remove(h)
}

// Population returns a copy of every animal in insertion order.
func (s *Simulator) Population() []AnimalInfo {
	tracked := s.regions.Tracked()
	out := make([]AnimalInfo, len(tracked))
	for i, e := range tracked {
		out[i] = animalInfo(s.store, e)
	}
	return out
}

// Map returns the map geometry and the state of every region.
func (s *Simulator) Map() MapInfo {
	return mapInfo(s.regions)
}

// State returns a full snapshot for observers.
func (s *Simulator) State() State {
	return State{Time: s.time, Map: s.Map(), Population: s.Population()}
}

// Dump returns the persisted-state document.
func (s *Simulator) Dump() StateDoc {
	var doc StateDoc
	doc.Time = s.time
	doc.State.Regions = s.regions.Dump()
	return doc
}
