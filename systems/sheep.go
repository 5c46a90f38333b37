package systems

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/ecosys/components"
)

// updateSheep runs the herbivore state machine: NORMAL, DANGER, MATE.
func (b *Behavior) updateSheep(a *actor, dt float64) {
	switch a.vit.State {
	case components.StateNormal:
		b.sheepNormal(a, dt)
	case components.StateDanger:
		b.sheepDanger(a, dt)
	case components.StateMate:
		b.sheepMate(a, dt)
	}
}

func (b *Behavior) searchDanger(a *actor) {
	a.bonds.Target = b.searchDiet(a, components.Carnivore)
}

func (b *Behavior) sheepNormal(a *actor, dt float64) {
	b.wander(a, dt)

	if !isNil(a.bonds.Target) {
		toAlert(a, components.StateDanger)
		return
	}
	if a.vit.Desire > b.cfg.Animals.MateDesire {
		toMate(a)
	} else {
		b.searchDanger(a)
	}
}

func (b *Behavior) sheepDanger(a *actor, dt float64) {
	if b.lost(a.bonds.Target) {
		toNormal(a)
	}

	if isNil(a.bonds.Target) {
		b.wander(a, dt)
	} else {
		src := b.store.Body(a.bonds.Target).Pos
		away := r2.Add(a.body.Pos, Direction(r2.Sub(a.body.Pos, src)))
		b.pursue(a, away, dt)
	}

	if isNil(a.bonds.Target) || b.outOfSight(a, a.bonds.Target) {
		b.searchDanger(a)
		if isNil(a.bonds.Target) {
			if a.vit.Desire < b.cfg.Animals.MateDesire {
				toNormal(a)
			} else {
				toMate(a)
			}
		}
	}
}

func (b *Behavior) sheepMate(a *actor, dt float64) {
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
			b.mate(a, mate, a.e)
			a.bonds.Mate = ecs.Entity{}
		}
	}

	// Danger always preempts mating.
	if isNil(a.bonds.Target) {
		b.searchDanger(a)
	}
	if !isNil(a.bonds.Target) {
		toAlert(a, components.StateDanger)
	} else if a.vit.Desire < b.cfg.Animals.MateDesire {
		toNormal(a)
	}
}
