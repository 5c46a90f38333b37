package systems

import (
	"fmt"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/selection"
)

// Recorder receives the interactions animals perform during an update.
type Recorder interface {
	RecordKill(hunter, prey components.Identity)
	RecordMating(a, b components.Identity)
	RecordConception(carrier components.Identity)
}

// Behavior runs the per-step state machine of every species.
type Behavior struct {
	store   *Store
	regions *RegionManager
	species *SpeciesRegistry
	cfg     *config.Config
	rng     *rand.Rand
	rec     Recorder
}

// NewBehavior creates the behaviour system over a store and its region manager.
func NewBehavior(store *Store, regions *RegionManager, cfg *config.Config, rng *rand.Rand) *Behavior {
	return &Behavior{
		store:   store,
		regions: regions,
		species: NewSpeciesRegistry(cfg),
		cfg:     cfg,
		rng:     rng,
	}
}

// SetRecorder sets the recorder for kills and matings. nil disables recording.
func (b *Behavior) SetRecorder(r Recorder) {
	b.rec = r
}

// actor bundles the components of the animal being updated.
type actor struct {
	e      ecs.Entity
	id     *components.Identity
	body   *components.Body
	vit    *components.Vitals
	bonds  *components.Bonds
	policy *components.Policy
	sp     *config.SpeciesConfig
}

func (b *Behavior) actor(e ecs.Entity) *actor {
	id := b.store.Identity(e)
	return &actor{
		e:      e,
		id:     id,
		body:   b.store.Body(e),
		vit:    b.store.Vitals(e),
		bonds:  b.store.Bonds(e),
		policy: b.store.Policy(e),
		sp:     b.species.Get(id.Kind).Params,
	}
}

// Update advances one animal by dt. Dead animals are left untouched.
// Panics if e is not registered with the region manager.
func (b *Behavior) Update(e ecs.Entity, dt float64) {
	if !b.regions.IsTracked(e) {
		panic(fmt.Sprintf("systems: update of unregistered animal %v", e))
	}
	a := b.actor(e)
	if a.vit.Dead() {
		return
	}

	switch a.id.Kind {
	case components.KindSheep:
		b.updateSheep(a, dt)
	case components.KindWolf:
		b.updateWolf(a, dt)
	}

	b.settle(a, dt)
}

// settle runs after every species update: it brings strays back onto the
// map, applies death by starvation or age, and feeds the survivors.
func (b *Behavior) settle(a *actor, dt float64) {
	if a.vit.Dead() {
		return
	}
	if !b.regions.InBounds(a.body.Pos) {
		a.body.Pos = b.regions.Wrap(a.body.Pos)
		toNormal(a)
	}

	switch {
	case a.vit.Energy == 0:
		die(a.vit, components.CauseStarvation)
	case a.vit.Age > a.sp.MaxAge:
		die(a.vit, components.CauseOldAge)
	default:
		food := b.regions.FoodFor(a.e, dt)
		a.vit.Energy = clamp(a.vit.Energy+food, 0, b.cfg.Animals.MaxEnergy)
	}
}

func die(v *components.Vitals, cause components.DeathCause) {
	v.State = components.StateDead
	v.Cause = cause
}

// State transitions shared by both species. Entering an alert state
// (danger or hunger) drops the mate; entering mate drops the target.

func toNormal(a *actor) {
	a.vit.State = components.StateNormal
	a.bonds.Target = ecs.Entity{}
	a.bonds.Mate = ecs.Entity{}
}

func toMate(a *actor) {
	a.vit.State = components.StateMate
	a.bonds.Target = ecs.Entity{}
}

func toAlert(a *actor, state components.State) {
	a.vit.State = state
	a.bonds.Mate = ecs.Entity{}
}

// lost reports whether a tracked handle no longer refers to a live animal.
func (b *Behavior) lost(e ecs.Entity) bool {
	return !isNil(e) && !b.store.Usable(e)
}

// outOfSight reports whether e is farther from a than its sight range.
func (b *Behavior) outOfSight(a *actor, e ecs.Entity) bool {
	return Distance(b.store.Body(e).Pos, a.body.Pos) > a.body.Sight
}

// search selects among the live animals in sight that satisfy keep.
// Returns the zero entity when nothing qualifies.
func (b *Behavior) search(a *actor, s selection.Strategy, keep func(ecs.Entity) bool) ecs.Entity {
	if s == nil {
		return ecs.Entity{}
	}
	inRange := b.regions.AnimalsInRange(a.e, func(e ecs.Entity) bool {
		return !b.store.Vitals(e).Dead() && keep(e)
	})
	if len(inRange) == 0 {
		return ecs.Entity{}
	}
	cands := make([]selection.Candidate, len(inRange))
	for i, e := range inRange {
		cands[i] = b.store.Candidate(e)
	}
	picked, ok := s.Select(b.store.Candidate(a.e), cands)
	if !ok {
		return ecs.Entity{}
	}
	return picked
}

// searchMate looks for a partner with the same genetic code.
func (b *Behavior) searchMate(a *actor) ecs.Entity {
	return b.search(a, a.policy.Mate, func(e ecs.Entity) bool {
		return b.store.Identity(e).Code == a.id.Code
	})
}

// searchDiet looks for a target of the given diet using the target strategy.
func (b *Behavior) searchDiet(a *actor, diet components.Diet) ecs.Entity {
	return b.search(a, a.policy.Target, func(e ecs.Entity) bool {
		return b.store.Identity(e).Diet == diet
	})
}
