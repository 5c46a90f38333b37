package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/ecosys/components"
)

// updateWolf runs the carnivore state machine: NORMAL, HUNGER, MATE.
func (b *Behavior) updateWolf(a *actor, dt float64) {
	switch a.vit.State {
	case components.StateNormal:
		b.wolfNormal(a, dt)
	case components.StateHunger:
		b.wolfHunger(a, dt)
	case components.StateMate:
		b.wolfMate(a, dt)
	}
}

func (b *Behavior) wolfNormal(a *actor, dt float64) {
	b.wander(a, dt)

	if a.vit.Energy < a.sp.HungerThreshold {
		toAlert(a, components.StateHunger)
	} else if a.vit.Desire > b.cfg.Animals.MateDesire {
		toMate(a)
	}
}

func (b *Behavior) wolfHunger(a *actor, dt float64) {
	prey := a.bonds.Target
	if isNil(prey) || b.lost(prey) || b.outOfSight(a, prey) {
		a.bonds.Target = b.searchDiet(a, components.Herbivore)
	}

	if isNil(a.bonds.Target) {
		b.wander(a, dt)
	} else {
		prey = a.bonds.Target
		b.pursue(a, b.store.Body(prey).Pos, dt)
		if b.inContact(a, prey) {
			b.kill(a, prey)
		}
	}

	if a.vit.Energy > a.sp.HungerThreshold {
		if a.vit.Desire > b.cfg.Animals.MateDesire {
			toMate(a)
		} else {
			toNormal(a)
		}
	}
}

func (b *Behavior) wolfMate(a *actor, dt float64) {
	if b.lost(a.bonds.Mate) || (!isNil(a.bonds.Mate) && b.outOfSight(a, a.bonds.Mate)) {
		a.bonds.Mate = ecs.Entity{}
	}
	if isNil(a.bonds.Mate) {
		a.bonds.Mate = b.searchMate(a)
	}

	if isNil(a.bonds.Mate) {
		b.wander(a, dt)
	} else {
		mate := a.bonds.Mate
		b.pursue(a, b.store.Body(mate).Pos, dt)
		if b.inContact(a, mate) {
			// The mate carries the litter; the initiator pays for it.
			b.mate(a, mate, mate)
			a.vit.Energy = clamp(a.vit.Energy-a.sp.MatingPenalty, 0, b.cfg.Animals.MaxEnergy)
			a.bonds.Mate = ecs.Entity{}
		}
	}

	// Hunger always preempts mating.
	if a.vit.Energy < a.sp.HungerThreshold {
		toAlert(a, components.StateHunger)
	} else if a.vit.Desire < b.cfg.Animals.MateDesire {
		toNormal(a)
	}
}
