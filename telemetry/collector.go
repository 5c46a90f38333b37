// Package telemetry provides ecosystem health tracking, bookmarking, and snapshots.
package telemetry

import (
	"github.com/pthm-cable/ecosys/components"
	"github.com/pthm-cable/ecosys/sim"
	"github.com/pthm-cable/ecosys/systems"
)

// windowEpsilon absorbs rounding when simulated time is summed from dt.
const windowEpsilon = 1e-9

// Collector accumulates events within windows of simulated time and
// produces WindowStats.
type Collector struct {
	windowDuration float64
	windowStart    float64
	steps          int

	// Event counters for current window
	sheepBirths int
	wolfBirths  int
	sheepDeaths int
	wolfDeaths  int
	causes      [components.CauseOldAge + 1]int
	kills       int
	matings     int
	conceptions int
}

// NewCollector creates a collector whose windows last windowSec
// simulated seconds, starting at time zero.
func NewCollector(windowSec float64) *Collector {
	return &Collector{windowDuration: windowSec}
}

// Restart drops the counters and starts a new window at now.
func (c *Collector) Restart(now float64) {
	*c = Collector{windowDuration: c.windowDuration, windowStart: now}
}

// RecordStep counts one simulation step.
func (c *Collector) RecordStep() {
	c.steps++
}

// RecordKill records a kill.
func (c *Collector) RecordKill() {
	c.kills++
}

// RecordMating records a mating.
func (c *Collector) RecordMating() {
	c.matings++
}

// RecordConception records a conceived offspring.
func (c *Collector) RecordConception() {
	c.conceptions++
}

// RecordBirth records a birth event.
func (c *Collector) RecordBirth(kind components.Kind) {
	if kind == components.KindSheep {
		c.sheepBirths++
	} else {
		c.wolfBirths++
	}
}

// RecordDeath records a death event.
func (c *Collector) RecordDeath(kind components.Kind, cause components.DeathCause) {
	if kind == components.KindSheep {
		c.sheepDeaths++
	} else {
		c.wolfDeaths++
	}
	if int(cause) < len(c.causes) {
		c.causes[cause]++
	}
}

// ShouldFlush returns true once the current window has lasted its duration.
func (c *Collector) ShouldFlush(now float64) bool {
	return now-c.windowStart >= c.windowDuration-windowEpsilon
}

// WindowStart returns the simulated time the current window began.
func (c *Collector) WindowStart() float64 {
	return c.windowStart
}

// Flush produces a WindowStats from the counters and the state at now,
// then resets counters for the next window.
func (c *Collector) Flush(now float64, pop []sim.AnimalInfo, regions []sim.RegionEntry) WindowStats {
	stats := WindowStats{
		WindowStart: c.windowStart,
		WindowEnd:   now,
		Steps:       c.steps,

		SheepBirths: c.sheepBirths,
		WolfBirths:  c.wolfBirths,
		SheepDeaths: c.sheepDeaths,
		WolfDeaths:  c.wolfDeaths,
		Predation:   c.causes[components.CausePredation],
		Starvation:  c.causes[components.CauseStarvation],
		OldAge:      c.causes[components.CauseOldAge],
		Kills:       c.kills,
		Matings:     c.matings,
		Conceptions: c.conceptions,
	}

	var sheepEnergy, wolfEnergy, sheepAge, wolfAge []float64
	for _, a := range pop {
		if a.Dead() {
			continue
		}
		switch a.State {
		case components.StateDanger:
			stats.SheepFleeing++
		case components.StateHunger:
			stats.WolvesHunting++
		case components.StateMate:
			stats.Mating++
		}
		if a.Kind == components.KindSheep {
			stats.Sheep++
			sheepEnergy = append(sheepEnergy, a.Energy)
			sheepAge = append(sheepAge, a.Age)
		} else {
			stats.Wolves++
			wolfEnergy = append(wolfEnergy, a.Energy)
			wolfAge = append(wolfAge, a.Age)
		}
	}

	stats.SheepEnergyMean, stats.SheepEnergyP10, stats.SheepEnergyP50, stats.SheepEnergyP90 = ComputeEnergyStats(sheepEnergy)
	stats.WolfEnergyMean, stats.WolfEnergyP10, stats.WolfEnergyP50, stats.WolfEnergyP90 = ComputeEnergyStats(wolfEnergy)
	stats.SheepAgeMean, _, _, _ = ComputeEnergyStats(sheepAge)
	stats.WolfAgeMean, _, _, _ = ComputeEnergyStats(wolfAge)

	if stats.Wolves > 0 {
		stats.KillsPerWolf = float64(c.kills) / float64(stats.Wolves)
	}

	var stock []float64
	for _, r := range regions {
		if r.Kind == systems.RegionDynamic {
			stock = append(stock, r.Food)
		}
	}
	stats.DynamicRegions = len(stock)
	stats.FoodStock, stats.FoodStd = ComputeSpread(stock)

	c.Restart(now)
	return stats
}
