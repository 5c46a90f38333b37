package systems

import (
	"math"
	"math/rand"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/config"
)

// Region kinds as they appear in region info and scenario documents.
const (
	RegionDefault = "default"
	RegionDynamic = "dynamic"
)

// Region is a map cell that supplies food and tracks which animals are inside it.
// Membership is maintained by the RegionManager only.
type Region interface {
	// FoodFor returns the food granted to an animal of the given diet over dt.
	FoodFor(diet components.Diet, dt float64) float64
	// Update advances the region's internal food state.
	Update(dt float64, rng *rand.Rand)
	// Animals returns the current members in arrival order.
	Animals() []ecs.Entity
	Info() RegionInfo

	members() *membership
}

// RegionInfo is a read-only description of a region.
type RegionInfo struct {
	Kind    string  `json:"type"`
	Food    float64 `json:"food,omitempty"`
	Factor  float64 `json:"factor,omitempty"`
	Animals int     `json:"animals"`
}

// membership holds the animals inside a region and how many are herbivores.
type membership struct {
	animals    []ecs.Entity
	herbivores int
}

func (m *membership) members() *membership { return m }

// Animals returns the current members in arrival order.
func (m *membership) Animals() []ecs.Entity { return m.animals }

func (m *membership) add(e ecs.Entity, diet components.Diet) {
	m.animals = append(m.animals, e)
	if diet == components.Herbivore {
		m.herbivores++
	}
}

func (m *membership) remove(e ecs.Entity, diet components.Diet) {
	i := slices.Index(m.animals, e)
	if i < 0 {
		return
	}
	m.animals = slices.Delete(m.animals, i, i+1)
	if diet == components.Herbivore {
		m.herbivores--
	}
}

// grazing computes the herbivore yield of a region, penalized by crowding.
type grazing struct {
	yield, threshold, decay float64
}

func newGrazing(cfg *config.RegionsConfig) grazing {
	return grazing{yield: cfg.Yield, threshold: cfg.CrowdThreshold, decay: cfg.CrowdDecay}
}

func (g grazing) demand(herbivores int, dt float64) float64 {
	return g.yield * math.Exp(-g.decay*math.Max(0, float64(herbivores)-g.threshold)) * dt
}

// DefaultRegion regrows without limit: it feeds herbivores at the grazing
// rate and carnivores nothing.
type DefaultRegion struct {
	membership
	grazing grazing
}

// NewDefaultRegion creates a default region using the given food parameters.
func NewDefaultRegion(cfg *config.RegionsConfig) *DefaultRegion {
	return &DefaultRegion{grazing: newGrazing(cfg)}
}

func (r *DefaultRegion) FoodFor(diet components.Diet, dt float64) float64 {
	if diet == components.Carnivore {
		return 0
	}
	return r.grazing.demand(r.herbivores, dt)
}

func (r *DefaultRegion) Update(float64, *rand.Rand) {}

func (r *DefaultRegion) Info() RegionInfo {
	return RegionInfo{Kind: RegionDefault, Animals: len(r.animals)}
}

// DynamicSupplyRegion holds a finite food stock that herbivores deplete and
// that regrows stochastically by Factor per second.
type DynamicSupplyRegion struct {
	membership
	grazing grazing
	regrow  float64

	Food   float64
	Factor float64
}

// NewDynamicSupplyRegion creates a region with the given stock and regrowth factor.
func NewDynamicSupplyRegion(food, factor float64, cfg *config.RegionsConfig) *DynamicSupplyRegion {
	return &DynamicSupplyRegion{
		grazing: newGrazing(cfg),
		regrow:  cfg.RegrowChance,
		Food:    food,
		Factor:  factor,
	}
}

func (r *DynamicSupplyRegion) FoodFor(diet components.Diet, dt float64) float64 {
	if diet == components.Carnivore {
		return 0
	}
	amount := math.Min(r.Food, r.grazing.demand(r.herbivores, dt))
	r.Food -= amount
	return amount
}

func (r *DynamicSupplyRegion) Update(dt float64, rng *rand.Rand) {
	if rng.Float64() < r.regrow {
		r.Food += dt * r.Factor
	}
}

func (r *DynamicSupplyRegion) Info() RegionInfo {
	return RegionInfo{Kind: RegionDynamic, Food: r.Food, Factor: r.Factor, Animals: len(r.animals)}
}
