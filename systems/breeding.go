package systems

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/selection"
)

// ErrInvalidAnimal is returned when an animal cannot be constructed.
var ErrInvalidAnimal = errors.New("invalid animal")

// NewAnimal builds a founder of the given species at full energy.
// A nil pos leaves placement to registration. The speed is jittered
// around the species baseline.
func NewAnimal(info SpeciesInfo, limits *config.AnimalsConfig, mate, target selection.Strategy, pos *r2.Vec, rng *rand.Rand) (*components.Animal, error) {
	sp := info.Params
	switch {
	case sp.Code == "":
		return nil, fmt.Errorf("%w: %s has an empty genetic code", ErrInvalidAnimal, info.Name)
	case sp.Sight <= 0:
		return nil, fmt.Errorf("%w: %s sight %g must be positive", ErrInvalidAnimal, info.Name, sp.Sight)
	case sp.Speed <= 0:
		return nil, fmt.Errorf("%w: %s speed %g must be positive", ErrInvalidAnimal, info.Name, sp.Speed)
	case mate == nil:
		return nil, fmt.Errorf("%w: %s needs a mate strategy", ErrInvalidAnimal, info.Name)
	case target == nil:
		return nil, fmt.Errorf("%w: %s needs a target strategy", ErrInvalidAnimal, info.Name)
	}

	a := &components.Animal{
		Identity: components.Identity{Kind: info.Kind, Code: sp.Code, Diet: info.Diet},
		Body: components.Body{
			Sight: sp.Sight,
			Speed: Randomized(rng, sp.Speed, limits.SpeedJitter),
		},
		Vitals: components.Vitals{Energy: limits.MaxEnergy, State: components.StateNormal},
		Policy: components.Policy{Mate: mate, Target: target},
	}
	if pos != nil {
		a.Body.Pos = *pos
		a.Body.Placed = true
	}
	return a, nil
}

// inContact reports whether a is within interaction distance of e.
func (b *Behavior) inContact(a *actor, e ecs.Entity) bool {
	return Distance(a.body.Pos, b.store.Body(e).Pos) < b.cfg.Animals.InteractionDistance
}

// mate resets both partners' desire and, with the birth probability,
// conceives an offspring into the carrier's slot. Nothing is conceived
// while the initiator already carries one or the carrier slot is taken.
func (b *Behavior) mate(a *actor, partner, carrier ecs.Entity) {
	a.vit.Desire = 0
	b.store.Vitals(partner).Desire = 0
	if b.rec != nil {
		b.rec.RecordMating(*a.id, *b.store.Identity(partner))
	}

	slot := b.store.Bonds(carrier)
	if a.bonds.Offspring != nil || slot.Offspring != nil {
		return
	}
	if b.rng.Float64() >= b.cfg.Animals.BirthProbability {
		return
	}
	slot.Offspring = b.conceive(a, partner)
	if b.rec != nil {
		b.rec.RecordConception(*b.store.Identity(carrier))
	}
}

// conceive builds the offspring of a and partner. It takes the species and
// target strategy from a, the mate strategy from partner, the mean energy
// of both, and sight and speed jittered around the parents' means. It is
// placed at a random offset from a.
func (b *Behavior) conceive(a *actor, partner ecs.Entity) *components.Animal {
	limits := &b.cfg.Animals
	pBody := b.store.Body(partner)
	pVit := b.store.Vitals(partner)

	id := *a.id
	id.ID = 0

	dir := randomVec(b.rng, -1, 1)
	offset := r2.Scale(limits.OffspringSpread*(b.rng.NormFloat64()+1), dir)

	return &components.Animal{
		Identity: id,
		Body: components.Body{
			Pos:    r2.Add(a.body.Pos, offset),
			Placed: true,
			Sight:  Randomized(b.rng, (a.body.Sight+pBody.Sight)/2, limits.OffspringJitter),
			Speed:  Randomized(b.rng, (a.body.Speed+pBody.Speed)/2, limits.OffspringJitter),
		},
		Vitals: components.Vitals{
			Energy: (a.vit.Energy + pVit.Energy) / 2,
			State:  components.StateNormal,
		},
		Policy: components.Policy{
			Mate:   b.store.Policy(partner).Mate,
			Target: a.policy.Target,
		},
	}
}
