// Package selection provides the policies animals use to pick one peer
// out of the candidates found in sight.
package selection

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"
)

// Candidate is the read-only view of an animal a strategy selects from.
type Candidate struct {
	Entity ecs.Entity
	Pos    r2.Vec
	Age    float64
}

// Strategy picks one candidate relative to a reference animal.
// The reference itself is never returned.
type Strategy interface {
	Select(ref Candidate, cands []Candidate) (ecs.Entity, bool)
	Name() string
}

// First returns the first candidate that is not the reference.
type First struct{}

// Closest returns the candidate nearest to the reference.
type Closest struct{}

// Youngest returns the candidate with the lowest age.
type Youngest struct{}

func (First) Name() string    { return "first" }
func (Closest) Name() string  { return "closest" }
func (Youngest) Name() string { return "youngest" }

func (First) Select(ref Candidate, cands []Candidate) (ecs.Entity, bool) {
	for _, c := range cands {
		if c.Entity != ref.Entity {
			return c.Entity, true
		}
	}
	return ecs.Entity{}, false
}

func (Closest) Select(ref Candidate, cands []Candidate) (ecs.Entity, bool) {
	return minBy(ref, cands, func(c Candidate) float64 {
		return r2.Norm(r2.Sub(c.Pos, ref.Pos))
	})
}

func (Youngest) Select(ref Candidate, cands []Candidate) (ecs.Entity, bool) {
	return minBy(ref, cands, func(c Candidate) float64 {
		return c.Age
	})
}

// minBy returns the first candidate with the smallest key, skipping the reference.
func minBy(ref Candidate, cands []Candidate, key func(Candidate) float64) (ecs.Entity, bool) {
	var best ecs.Entity
	bestKey := 0.0
	found := false
	for _, c := range cands {
		if c.Entity == ref.Entity {
			continue
		}
		k := key(c)
		if !found || k < bestKey {
			best, bestKey, found = c.Entity, k, true
		}
	}
	return best, found
}

// ByName resolves a strategy from its name.
func ByName(name string) (Strategy, error) {
	switch name {
	case "first":
		return First{}, nil
	case "closest":
		return Closest{}, nil
	case "youngest":
		return Youngest{}, nil
	}
	return nil, fmt.Errorf("unknown selection strategy %q", name)
}
