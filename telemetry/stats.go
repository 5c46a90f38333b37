package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a window of simulated time.
type WindowStats struct {
	WindowStart float64 `csv:"-"`
	WindowEnd   float64 `csv:"sim_time"`
	Steps       int     `csv:"steps"`

	// Population at window end
	Sheep  int `csv:"sheep"`
	Wolves int `csv:"wolves"`

	// Events during window
	SheepBirths int `csv:"sheep_births"`
	WolfBirths  int `csv:"wolf_births"`
	SheepDeaths int `csv:"sheep_deaths"`
	WolfDeaths  int `csv:"wolf_deaths"`
	Predation   int `csv:"deaths_predation"`
	Starvation  int `csv:"deaths_starvation"`
	OldAge      int `csv:"deaths_old_age"`
	Kills       int `csv:"kills"`
	Matings     int `csv:"matings"`
	Conceptions int `csv:"conceptions"`

	// Hunting
	KillsPerWolf float64 `csv:"kills_per_wolf"`

	// Behaviour at window end
	SheepFleeing  int `csv:"sheep_fleeing"`
	WolvesHunting int `csv:"wolves_hunting"`
	Mating        int `csv:"mating"`

	// Energy distribution (sampled at window end)
	SheepEnergyMean float64 `csv:"sheep_energy_mean"`
	SheepEnergyP10  float64 `csv:"sheep_energy_p10"`
	SheepEnergyP50  float64 `csv:"sheep_energy_p50"`
	SheepEnergyP90  float64 `csv:"sheep_energy_p90"`

	WolfEnergyMean float64 `csv:"wolf_energy_mean"`
	WolfEnergyP10  float64 `csv:"wolf_energy_p10"`
	WolfEnergyP50  float64 `csv:"wolf_energy_p50"`
	WolfEnergyP90  float64 `csv:"wolf_energy_p90"`

	// Age
	SheepAgeMean float64 `csv:"sheep_age_mean"`
	WolfAgeMean  float64 `csv:"wolf_age_mean"`

	// Food supply
	DynamicRegions int     `csv:"dynamic_regions"`
	FoodStock      float64 `csv:"food_stock"` // total food left in dynamic regions
	FoodStd        float64 `csv:"food_std"`   // spread of stock across dynamic regions
}

// Percentile returns the p-th quantile of a sorted slice using the
// empirical CDF. p is clamped to [0, 1]. Returns 0 if the slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	switch {
	case p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[len(sorted)-1]
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// ComputeEnergyStats calculates mean and percentiles from energy values.
func ComputeEnergyStats(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return stat.Mean(sorted, nil),
		Percentile(sorted, 0.10),
		Percentile(sorted, 0.50),
		Percentile(sorted, 0.90)
}

// ComputeSpread returns the total and population standard deviation.
func ComputeSpread(values []float64) (total, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		total += v
	}
	_, std = stat.PopMeanStdDev(values, nil)
	return total, std
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("window_start", s.WindowStart),
		slog.Float64("sim_time", s.WindowEnd),
		slog.Int("steps", s.Steps),
		slog.Int("sheep", s.Sheep),
		slog.Int("wolves", s.Wolves),
		slog.Int("sheep_births", s.SheepBirths),
		slog.Int("wolf_births", s.WolfBirths),
		slog.Int("sheep_deaths", s.SheepDeaths),
		slog.Int("wolf_deaths", s.WolfDeaths),
		slog.Int("deaths_predation", s.Predation),
		slog.Int("deaths_starvation", s.Starvation),
		slog.Int("deaths_old_age", s.OldAge),
		slog.Int("kills", s.Kills),
		slog.Int("matings", s.Matings),
		slog.Int("conceptions", s.Conceptions),
		slog.Float64("kills_per_wolf", s.KillsPerWolf),
		slog.Int("sheep_fleeing", s.SheepFleeing),
		slog.Int("wolves_hunting", s.WolvesHunting),
		slog.Int("mating", s.Mating),
		slog.Float64("sheep_energy_mean", s.SheepEnergyMean),
		slog.Float64("sheep_energy_p10", s.SheepEnergyP10),
		slog.Float64("sheep_energy_p50", s.SheepEnergyP50),
		slog.Float64("sheep_energy_p90", s.SheepEnergyP90),
		slog.Float64("wolf_energy_mean", s.WolfEnergyMean),
		slog.Float64("wolf_energy_p10", s.WolfEnergyP10),
		slog.Float64("wolf_energy_p50", s.WolfEnergyP50),
		slog.Float64("wolf_energy_p90", s.WolfEnergyP90),
		slog.Float64("sheep_age_mean", s.SheepAgeMean),
		slog.Float64("wolf_age_mean", s.WolfAgeMean),
		slog.Int("dynamic_regions", s.DynamicRegions),
		slog.Float64("food_stock", s.FoodStock),
		slog.Float64("food_std", s.FoodStd),
	)
}

// LogStats logs the headline window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"sim_time", s.WindowEnd,
		"sheep", s.Sheep,
		"wolves", s.Wolves,
		"sheep_births", s.SheepBirths,
		"wolf_births", s.WolfBirths,
		"sheep_deaths", s.SheepDeaths,
		"wolf_deaths", s.WolfDeaths,
		"deaths_predation", s.Predation,
		"deaths_starvation", s.Starvation,
		"deaths_old_age", s.OldAge,
		"kills", s.Kills,
		"matings", s.Matings,
		"sheep_energy_mean", s.SheepEnergyMean,
		"wolf_energy_mean", s.WolfEnergyMean,
		"food_stock", s.FoodStock,
	)
}
