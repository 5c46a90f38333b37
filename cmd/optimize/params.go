package main

import (
	"github.com/pthm-cable/ecosys/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name  string // Human-readable name
	Path  string // Config path for logging
	Min   float64
	Max   float64
	Field func(cfg *config.Config) *float64
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Sheep
			{Name: "sheep_speed", Path: "sheep.speed", Min: 20, Max: 60, Field: func(c *config.Config) *float64 { return &c.Sheep.Speed }},
			{Name: "sheep_max_age", Path: "sheep.max_age", Min: 4, Max: 16, Field: func(c *config.Config) *float64 { return &c.Sheep.MaxAge }},
			{Name: "sheep_energy_drain", Path: "sheep.energy_drain", Min: 5, Max: 40, Field: func(c *config.Config) *float64 { return &c.Sheep.EnergyDrain }},
			{Name: "sheep_desire_gain", Path: "sheep.desire_gain", Min: 10, Max: 80, Field: func(c *config.Config) *float64 { return &c.Sheep.DesireGain }},
			// Wolves
			{Name: "wolf_speed", Path: "wolf.speed", Min: 30, Max: 90, Field: func(c *config.Config) *float64 { return &c.Wolf.Speed }},
			{Name: "wolf_max_age", Path: "wolf.max_age", Min: 6, Max: 24, Field: func(c *config.Config) *float64 { return &c.Wolf.MaxAge }},
			{Name: "wolf_energy_drain", Path: "wolf.energy_drain", Min: 5, Max: 40, Field: func(c *config.Config) *float64 { return &c.Wolf.EnergyDrain }},
			{Name: "wolf_desire_gain", Path: "wolf.desire_gain", Min: 10, Max: 60, Field: func(c *config.Config) *float64 { return &c.Wolf.DesireGain }},
			{Name: "wolf_hunger_threshold", Path: "wolf.hunger_threshold", Min: 20, Max: 90, Field: func(c *config.Config) *float64 { return &c.Wolf.HungerThreshold }},
			{Name: "wolf_kill_reward", Path: "wolf.kill_reward", Min: 20, Max: 100, Field: func(c *config.Config) *float64 { return &c.Wolf.KillReward }},
			{Name: "wolf_mating_penalty", Path: "wolf.mating_penalty", Min: 0, Max: 30, Field: func(c *config.Config) *float64 { return &c.Wolf.MatingPenalty }},
			// Shared
			{Name: "birth_probability", Path: "animals.birth_probability", Min: 0.3, Max: 1, Field: func(c *config.Config) *float64 { return &c.Animals.BirthProbability }},
			// Food supply
			{Name: "region_yield", Path: "regions.yield", Min: 20, Max: 120, Field: func(c *config.Config) *float64 { return &c.Regions.Yield }},
			{Name: "crowd_threshold", Path: "regions.crowd_threshold", Min: 1, Max: 10, Field: func(c *config.Config) *float64 { return &c.Regions.CrowdThreshold }},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	for i, v := range pv.Clamp(values) {
		*pv.Specs[i].Field(cfg) = v
	}
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = *spec.Field(cfg)
	}
	return v
}
