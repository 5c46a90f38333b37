// Package components defines ECS components for the simulation.
package components

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/ecosys/selection"
)

// Identity is fixed at creation and never changes for an entity.
type Identity struct {
	ID   uint32 // assigned on spawn, zero in blueprints
	Kind Kind
	Code string // genetic code, used for same-species filtering
	Diet Diet
}

// Vitals holds the per-step mutable physiology of an animal.
// Energy and Desire are kept within [0, MaxEnergy] and [0, MaxDesire].
type Vitals struct {
	Energy float64
	Desire float64
	Age    float64 // seconds of simulated time
	State  State
	Cause  DeathCause // set together with StateDead
}

// Dead reports whether the animal reached its terminal state.
func (v *Vitals) Dead() bool {
	return v.State == StateDead
}

// Bonds holds weak references to other animals plus the pending offspring.
// Mate and Target are zero entities when unset. Target is the danger
// source for herbivores and the hunt target for carnivores.
type Bonds struct {
	Mate      ecs.Entity
	Target    ecs.Entity
	Offspring *Animal // owned until delivered by the simulator
}

// Policy holds the selection strategies an animal uses to pick targets.
type Policy struct {
	Mate   selection.Strategy
	Target selection.Strategy // danger strategy (sheep) or hunt strategy (wolf)
}
