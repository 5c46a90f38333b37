package factory

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/selection"
	"github.com/pthm-cable/ecosys/systems"
)

// Strategies creates the selection strategy factory: first, closest, youngest.
func Strategies() *Factory[selection.Strategy] {
	strategy := func(s selection.Strategy, desc string) Builder[selection.Strategy] {
		return newBuilder(BuilderInfo{Type: s.Name(), Desc: desc}, "empty.schema.json",
			func(json.RawMessage) (selection.Strategy, error) { return s, nil })
	}
	return New(
		strategy(selection.First{}, "Select the first animal in the list"),
		strategy(selection.Closest{}, "Select the animal closest to the current one"),
		strategy(selection.Youngest{}, "Select the youngest animal in the list"),
	)
}

// Regions creates the region factory: default, dynamic.
func Regions(cfg *config.RegionsConfig) *Factory[systems.Region] {
	def := newBuilder(BuilderInfo{Type: systems.RegionDefault, Desc: "Default region"}, "empty.schema.json",
		func(json.RawMessage) (systems.Region, error) {
			return systems.NewDefaultRegion(cfg), nil
		})

	dynamic := newBuilder(BuilderInfo{
		Type: systems.RegionDynamic,
		Desc: "Dynamic supply region",
		Fields: map[string]string{
			"factor": fmt.Sprintf("Food increase factor (optional, default %g)", cfg.DynamicFactor),
			"food":   fmt.Sprintf("Initial amount of food (optional, default %g)", cfg.DynamicFood),
		},
	}, "dynamic.schema.json", func(data json.RawMessage) (systems.Region, error) {
		var d struct {
			Factor *float64 `json:"factor"`
			Food   *float64 `json:"food"`
		}
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		food, factor := cfg.DynamicFood, cfg.DynamicFactor
		if d.Food != nil {
			food = *d.Food
		}
		if d.Factor != nil {
			factor = *d.Factor
		}
		return systems.NewDynamicSupplyRegion(food, factor, cfg), nil
	})

	return New(def, dynamic)
}

// posRange is the rectangle an animal is placed in.
type posRange struct {
	X [2]float64 `json:"x_range"`
	Y [2]float64 `json:"y_range"`
}

// sample draws a uniform point from the range, x first.
func (p posRange) sample(rng *rand.Rand) r2.Vec {
	x := p.X[0] + rng.Float64()*(p.X[1]-p.X[0])
	y := p.Y[0] + rng.Float64()*(p.Y[1]-p.Y[0])
	return r2.Vec{X: x, Y: y}
}

// Animals creates the animal factory: sheep, wolf. Strategy fields are
// themselves creation specs resolved through strategies; a missing or
// null strategy defaults to first. Positions and speeds are drawn from rng.
func Animals(cfg *config.Config, strategies *Factory[selection.Strategy], rng *rand.Rand) *Factory[*components.Animal] {
	species := systems.NewSpeciesRegistry(cfg)

	animal := func(kind components.Kind, targetField, targetDesc string) Builder[*components.Animal] {
		info := species.Get(kind)
		return newBuilder(BuilderInfo{
			Type: info.Name,
			Desc: "A " + info.Name,
			Fields: map[string]string{
				"pos":           "Placement range: x_range and y_range, each [low, high] (optional, random if missing)",
				"mate_strategy": "Strategy to select a mate (first, closest, youngest)",
				targetField:     targetDesc,
			},
		}, info.Name+".schema.json", func(data json.RawMessage) (*components.Animal, error) {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(data, &fields); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
			}

			var pos *r2.Vec
			if raw, ok := fields["pos"]; ok {
				var r posRange
				if err := json.Unmarshal(raw, &r); err != nil {
					return nil, fmt.Errorf("pos: %w: %v", ErrInvalidData, err)
				}
				p := r.sample(rng)
				pos = &p
			}

			mate, err := strategyField(strategies, fields, "mate_strategy")
			if err != nil {
				return nil, err
			}
			target, err := strategyField(strategies, fields, targetField)
			if err != nil {
				return nil, err
			}

			a, err := systems.NewAnimal(info, &cfg.Animals, mate, target, pos, rng)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
			}
			return a, nil
		})
	}

	return New(
		animal(components.KindSheep, "danger_strategy", "Strategy to select a danger source (first, closest, youngest)"),
		animal(components.KindWolf, "hunt_strategy", "Strategy to select a prey (first, closest, youngest)"),
	)
}

// strategyField resolves an optional strategy spec, defaulting to first.
func strategyField(strategies *Factory[selection.Strategy], fields map[string]json.RawMessage, name string) (selection.Strategy, error) {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return selection.First{}, nil
	}
	s, err := strategies.Create(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}
