package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/config"
)

// UpdateVitals ages the animal by dt, drains energy and accrues desire,
// keeping both within their limits.
func UpdateVitals(v *components.Vitals, drain, gain, dt float64, limits *config.AnimalsConfig) {
	v.Age += dt
	v.Energy = clamp(v.Energy-drain*dt, 0, limits.MaxEnergy)
	v.Desire = clamp(v.Desire+gain*dt, 0, limits.MaxDesire)
}

// Pace returns the distance covered in dt at the given speed. Tired
// animals slow down exponentially as energy drops below the maximum.
func Pace(speed, energy, dt float64, limits *config.AnimalsConfig) float64 {
	return speed * dt * math.Exp((energy-limits.MaxEnergy)*limits.EnergySpeedFactor)
}

// step moves the animal toward its destination and updates its vitals.
func (b *Behavior) step(a *actor, speed, drain, dt float64) {
	limits := &b.cfg.Animals
	dist := Pace(speed, a.vit.Energy, dt, limits)
	a.body.Pos = r2.Add(a.body.Pos, r2.Scale(dist, Direction(r2.Sub(a.body.Dest, a.body.Pos))))
	UpdateVitals(a.vit, drain, a.sp.DesireGain, dt, limits)
}

// wander moves at the animal's own pace, picking a new random
// destination once the current one is reached.
func (b *Behavior) wander(a *actor, dt float64) {
	if Distance(a.body.Pos, a.body.Dest) < b.cfg.Animals.InteractionDistance {
		a.body.Dest = b.regions.RandomPos(b.rng)
	}
	b.step(a, a.body.Speed, a.sp.EnergyDrain, dt)
}

// pursue heads for dest at the species pursuit pace.
func (b *Behavior) pursue(a *actor, dest r2.Vec, dt float64) {
	a.body.Dest = dest
	b.step(a, a.body.Speed*a.sp.PursuitSpeed, a.sp.EnergyDrain*a.sp.PursuitDrain, dt)
}
