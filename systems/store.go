package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/selection"
)

// Store owns the ECS world holding every spawned animal.
// Entities are the stable handles other animals refer to; a handle
// outlives its animal and is detected as stale by Alive.
//
// Component pointers returned by the accessors are only valid until the
// next Spawn or Despawn.
type Store struct {
	world *ecs.World

	animals *ecs.Map5[
		components.Identity,
		components.Body,
		components.Vitals,
		components.Bonds,
		components.Policy,
	]
	identMap  *ecs.Map1[components.Identity]
	bodyMap   *ecs.Map1[components.Body]
	vitalsMap *ecs.Map1[components.Vitals]
	bondsMap  *ecs.Map1[components.Bonds]
	policyMap *ecs.Map1[components.Policy]
}

// NewStore creates an empty store backed by a fresh world.
func NewStore() *Store {
	world := ecs.NewWorld()
	return &Store{
		world: world,
		animals: ecs.NewMap5[
			components.Identity,
			components.Body,
			components.Vitals,
			components.Bonds,
			components.Policy,
		](world),
		identMap:  ecs.NewMap1[components.Identity](world),
		bodyMap:   ecs.NewMap1[components.Body](world),
		vitalsMap: ecs.NewMap1[components.Vitals](world),
		bondsMap:  ecs.NewMap1[components.Bonds](world),
		policyMap: ecs.NewMap1[components.Policy](world),
	}
}

// Spawn adds a copy of the blueprint to the world and returns its handle.
func (s *Store) Spawn(a *components.Animal) ecs.Entity {
	id := a.Identity
	body := a.Body
	vitals := a.Vitals
	policy := a.Policy
	bonds := components.Bonds{}
	return s.animals.NewEntity(&id, &body, &vitals, &bonds, &policy)
}

// Despawn removes the animal from the world. Its handle becomes stale.
func (s *Store) Despawn(e ecs.Entity) {
	s.world.RemoveEntity(e)
}

// Alive reports whether e refers to an animal still in the world.
func (s *Store) Alive(e ecs.Entity) bool {
	return !isNil(e) && s.world.Alive(e)
}

// Usable reports whether e refers to an animal in the world that is not dead.
func (s *Store) Usable(e ecs.Entity) bool {
	return s.Alive(e) && !s.vitalsMap.Get(e).Dead()
}

func (s *Store) Identity(e ecs.Entity) *components.Identity { return s.identMap.Get(e) }
func (s *Store) Body(e ecs.Entity) *components.Body         { return s.bodyMap.Get(e) }
func (s *Store) Vitals(e ecs.Entity) *components.Vitals     { return s.vitalsMap.Get(e) }
func (s *Store) Bonds(e ecs.Entity) *components.Bonds       { return s.bondsMap.Get(e) }
func (s *Store) Policy(e ecs.Entity) *components.Policy     { return s.policyMap.Get(e) }

// Candidate returns the selection view of e.
func (s *Store) Candidate(e ecs.Entity) selection.Candidate {
	return selection.Candidate{
		Entity: e,
		Pos:    s.bodyMap.Get(e).Pos,
		Age:    s.vitalsMap.Get(e).Age,
	}
}

// Snapshot copies the animal's state back into a blueprint.
func (s *Store) Snapshot(e ecs.Entity) components.Animal {
	id, body, vitals, _, policy := s.animals.Get(e)
	return components.Animal{
		Identity: *id,
		Body:     *body,
		Vitals:   *vitals,
		Policy:   *policy,
	}
}

// isNil reports whether e is the zero handle.
func isNil(e ecs.Entity) bool {
	return e == ecs.Entity{}
}
