package telemetry

import (
	"sort"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/sim"
)

// LifetimeStats tracks per-animal statistics over its lifetime.
type LifetimeStats struct {
	ID        uint32          `csv:"id" json:"id"`
	Kind      components.Kind `csv:"-" json:"kind"`
	Species   string          `csv:"species" json:"-"`
	BirthTime float64         `csv:"birth_time" json:"birth_time"`
	DeathTime float64         `csv:"death_time" json:"death_time,omitempty"`
	Cause     string          `csv:"cause" json:"cause,omitempty"`
	Age       float64         `csv:"age" json:"age"`

	Kills    int `csv:"kills" json:"kills"`
	Matings  int `csv:"matings" json:"matings"`
	Children int `csv:"children" json:"children"`

	PeakEnergy float64 `csv:"peak_energy" json:"peak_energy"`
}

// LifetimeTracker manages per-animal lifetime statistics keyed by ID.
type LifetimeTracker struct {
	stats map[uint32]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[uint32]*LifetimeStats),
	}
}

// Register creates lifetime stats for an animal first seen at now.
func (lt *LifetimeTracker) Register(a sim.AnimalInfo, now float64) {
	lt.stats[a.ID] = &LifetimeStats{
		ID:         a.ID,
		Kind:       a.Kind,
		Species:    a.Kind.String(),
		BirthTime:  now,
		Age:        a.Age,
		PeakEnergy: a.Energy,
	}
}

// Get returns the lifetime stats for an animal, or nil if not found.
func (lt *LifetimeTracker) Get(id uint32) *LifetimeStats {
	return lt.stats[id]
}

// Remove drops an animal's stats and returns them, closed at now with
// the animal's final state. Returns nil if the animal is not tracked.
func (lt *LifetimeTracker) Remove(a sim.AnimalInfo, now float64) *LifetimeStats {
	s := lt.stats[a.ID]
	if s == nil {
		return nil
	}
	delete(lt.stats, a.ID)
	s.DeathTime = now
	s.Age = a.Age
	s.Cause = a.Cause.String()
	return s
}

// Reset forgets every tracked animal.
func (lt *LifetimeTracker) Reset() {
	clear(lt.stats)
}

// RecordKill increments kill count.
func (lt *LifetimeTracker) RecordKill(id uint32) {
	if s := lt.stats[id]; s != nil {
		s.Kills++
	}
}

// RecordMating increments mating count.
func (lt *LifetimeTracker) RecordMating(id uint32) {
	if s := lt.stats[id]; s != nil {
		s.Matings++
	}
}

// RecordChild increments children count.
func (lt *LifetimeTracker) RecordChild(parentID uint32) {
	if s := lt.stats[parentID]; s != nil {
		s.Children++
	}
}

// Update tracks age and peak energy.
func (lt *LifetimeTracker) Update(a sim.AnimalInfo) {
	s := lt.stats[a.ID]
	if s == nil {
		return
	}
	s.Age = a.Age
	if a.Energy > s.PeakEnergy {
		s.PeakEnergy = a.Energy
	}
}

// All returns copies of the tracked stats ordered by ID.
func (lt *LifetimeTracker) All() []LifetimeStats {
	out := make([]LifetimeStats, 0, len(lt.stats))
	for _, s := range lt.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of tracked animals.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}
