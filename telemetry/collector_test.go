package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/sim"
	"github.com/pthm-cable/ecosys/systems"
)

func TestCollectorShouldFlush(t *testing.T) {
	c := NewCollector(1.5)

	tests := []struct {
		now  float64
		want bool
	}{
		{0, false},
		{1.47, false},
		{1.4999999999999, true}, // summed from dt
		{1.5, true},
		{2, true},
	}
	for _, tt := range tests {
		if got := c.ShouldFlush(tt.now); got != tt.want {
			t.Errorf("ShouldFlush(%v) = %v, want %v", tt.now, got, tt.want)
		}
	}

	c.Restart(10)
	if c.ShouldFlush(11) || !c.ShouldFlush(11.5) {
		t.Error("window should restart at 10")
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(1.5)
	c.RecordStep()
	c.RecordStep()
	c.RecordKill()
	c.RecordKill()
	c.RecordMating()
	c.RecordConception()
	c.RecordBirth(components.KindSheep)
	c.RecordDeath(components.KindSheep, components.CausePredation)
	c.RecordDeath(components.KindWolf, components.CauseStarvation)

	pop := []sim.AnimalInfo{
		{Kind: components.KindSheep, State: components.StateDanger, Energy: 40, Age: 1},
		{Kind: components.KindSheep, State: components.StateDead, Energy: 0, Age: 9},
		{Kind: components.KindWolf, State: components.StateHunger, Energy: 80, Age: 4},
		{Kind: components.KindSheep, State: components.StateMate, Energy: 60, Age: 3},
	}
	regions := []sim.RegionEntry{
		{RegionInfo: systems.RegionInfo{Kind: systems.RegionDynamic, Food: 100, Factor: 2}},
		{RegionInfo: systems.RegionInfo{Kind: systems.RegionDynamic, Food: 300, Factor: 2}},
		{RegionInfo: systems.RegionInfo{Kind: systems.RegionDefault}},
	}

	s := c.Flush(1.5, pop, regions)

	checks := []struct {
		name      string
		got, want float64
	}{
		{"steps", float64(s.Steps), 2},
		{"sheep", float64(s.Sheep), 2},
		{"wolves", float64(s.Wolves), 1},
		{"sheep births", float64(s.SheepBirths), 1},
		{"sheep deaths", float64(s.SheepDeaths), 1},
		{"wolf deaths", float64(s.WolfDeaths), 1},
		{"predation", float64(s.Predation), 1},
		{"starvation", float64(s.Starvation), 1},
		{"old age", float64(s.OldAge), 0},
		{"kills", float64(s.Kills), 2},
		{"matings", float64(s.Matings), 1},
		{"conceptions", float64(s.Conceptions), 1},
		{"kills per wolf", s.KillsPerWolf, 2},
		{"fleeing", float64(s.SheepFleeing), 1},
		{"hunting", float64(s.WolvesHunting), 1},
		{"mating", float64(s.Mating), 1},
		{"sheep energy mean", s.SheepEnergyMean, 50},
		{"wolf energy p50", s.WolfEnergyP50, 80},
		{"sheep age mean", s.SheepAgeMean, 2},
		{"dynamic regions", float64(s.DynamicRegions), 2},
		{"food stock", s.FoodStock, 400},
		{"food std", s.FoodStd, 100},
	}
	for _, ch := range checks {
		if math.Abs(ch.got-ch.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", ch.name, ch.got, ch.want)
		}
	}

	next := c.Flush(3, nil, nil)
	if next.WindowStart != 1.5 || next.Kills != 0 || next.Steps != 0 || next.SheepDeaths != 0 {
		t.Errorf("counters not reset: %+v", next)
	}
}
