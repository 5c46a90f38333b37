package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/ecosys/components"
)

// kill ends the prey's life and rewards the hunter.
func (b *Behavior) kill(a *actor, prey ecs.Entity) {
	die(b.store.Vitals(prey), components.CausePredation)
	a.bonds.Target = ecs.Entity{}
	a.vit.Energy = clamp(a.vit.Energy+a.sp.KillReward, 0, b.cfg.Animals.MaxEnergy)
	if b.rec != nil {
		b.rec.RecordKill(*a.id, *b.store.Identity(prey))
	}
}
