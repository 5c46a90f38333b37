package systems

import (
	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/config"
)

// SpeciesInfo describes a species the simulation knows how to update.
type SpeciesInfo struct {
	Kind   components.Kind
	Name   string // factory tag
	Diet   components.Diet
	Params *config.SpeciesConfig
}

// SpeciesRegistry holds the closed set of species and their parameters.
// Lookups by Kind index directly; lookups by name go through the map.
type SpeciesRegistry struct {
	species []SpeciesInfo
	byName  map[string]SpeciesInfo
}

// NewSpeciesRegistry creates a registry with every known species.
func NewSpeciesRegistry(cfg *config.Config) *SpeciesRegistry {
	reg := &SpeciesRegistry{
		byName: make(map[string]SpeciesInfo),
	}
	reg.register(SpeciesInfo{Kind: components.KindSheep, Name: "sheep", Diet: components.Herbivore, Params: &cfg.Sheep})
	reg.register(SpeciesInfo{Kind: components.KindWolf, Name: "wolf", Diet: components.Carnivore, Params: &cfg.Wolf})
	return reg
}

// register adds a species; species must be registered in Kind order.
func (r *SpeciesRegistry) register(info SpeciesInfo) {
	r.species = append(r.species, info)
	r.byName[info.Name] = info
}

// Get returns the species for a kind.
func (r *SpeciesRegistry) Get(kind components.Kind) SpeciesInfo {
	return r.species[kind]
}

// Lookup returns the species registered under a factory tag.
func (r *SpeciesRegistry) Lookup(name string) (SpeciesInfo, bool) {
	info, ok := r.byName[name]
	return info, ok
}

// All returns all species in Kind order.
func (r *SpeciesRegistry) All() []SpeciesInfo {
	return r.species
}
