package main

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/scenario"
	"github.com/pthm-cable/ecosys/sim"
	"github.com/pthm-cable/ecosys/telemetry"
)

// FitnessEvaluator runs batch simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	doc        *scenario.Document
	maxTime    float64
	seeds      []int64
	baseConfig *config.Config

	mu           sync.Mutex
	bestFitness  float64
	bestWindows  []telemetry.WindowStats
	lastSurvival float64 // mean over the seeds of the latest evaluation
	lastQuality  float64
}

// NewFitnessEvaluator creates a new evaluator. Every evaluation loads doc
// afresh and runs it for at most maxTime simulated seconds per seed.
func NewFitnessEvaluator(params *ParamVector, doc *scenario.Document, maxTime float64, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		doc:         doc,
		maxTime:     maxTime,
		seeds:       seeds,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// BestWindows returns the telemetry of the best seed of the best evaluation.
func (fe *FitnessEvaluator) BestWindows() []telemetry.WindowStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestWindows
}

// Last returns the mean survival and quality of the most recent evaluation.
func (fe *FitnessEvaluator) Last() (survival, quality float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastSurvival, fe.lastQuality
}

// runResult holds the results from a single simulation run.
type runResult struct {
	survival float64 // simulated seconds before a species died out (or maxTime)
	windows  []telemetry.WindowStats
	err      error
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Seeds run in parallel, each on its own simulator and config copy.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]*runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, s)
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalSurvival, totalQuality float64
	bestSeedFitness := math.Inf(1)
	var bestSeedWindows []telemetry.WindowStats
	for _, r := range results {
		if r.err != nil {
			// A broken run is the worst possible outcome.
			slog.Warn("run failed", "error", r.err)
			continue
		}
		quality := computeQuality(r.windows, fe.baseConfig.Animals.MaxEnergy)
		fitness := computeFitness(r.survival, quality)
		totalFitness += fitness
		totalSurvival += r.survival
		totalQuality += quality
		if fitness < bestSeedFitness {
			bestSeedFitness = fitness
			bestSeedWindows = r.windows
		}
	}

	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestWindows = bestSeedWindows
	}
	fe.lastSurvival = totalSurvival / n
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single run until a species dies out or
// maxTime passes, collecting every telemetry window.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) *runResult {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	rng := rand.New(rand.NewSource(seed))
	s, err := sim.New(cfg, rng)
	if err != nil {
		return &runResult{err: err}
	}

	result := &runResult{survival: fe.maxTime}
	extinct := false
	m := telemetry.NewMonitor(cfg, s, seed)
	m.OnWindow(func(w telemetry.WindowStats) {
		result.windows = append(result.windows, w)
		if !extinct && (w.Sheep == 0 || w.Wolves == 0) {
			extinct = true
			result.survival = w.WindowEnd
		}
	})
	m.Attach()

	if err := scenario.Load(s, fe.doc, scenario.NewFactories(cfg, rng)); err != nil {
		return &runResult{err: err}
	}
	for !extinct && s.Time() <= fe.maxTime {
		s.Advance(cfg.Run.DT)
	}
	return result
}

// copyConfig returns a copy of the base config that a run may modify.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -(survival × (1.0 + 0.2 × quality))
// Survival dominates; quality adds up to 20% bonus to differentiate
// configs with similar survival.
func computeFitness(survival, quality float64) float64 {
	return -(survival * (1.0 + 0.2*quality))
}

// Quality component weights.
const (
	qualityWeightRatio     = 0.30
	qualityWeightStability = 0.25
	qualityWeightEnergy    = 0.25
	qualityWeightHunting   = 0.20

	qualityWarmupWindows = 3   // skip first N windows (warmup)
	qualityMinPop        = 3   // exclude windows where either species < this
	targetRatio          = 5   // sheep per wolf
	targetEnergy         = 0.5 // median energy as a fraction of max
)

// computeQuality computes ecosystem quality ∈ [0, 1] from window stats.
func computeQuality(windows []telemetry.WindowStats, maxEnergy float64) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var ratioSum, energySum, huntSum float64
	var count int
	sheep := make([]float64, 0, len(valid))
	wolves := make([]float64, 0, len(valid))

	for _, w := range valid {
		if w.Sheep < qualityMinPop || w.Wolves < qualityMinPop {
			continue
		}
		count++
		sheep = append(sheep, float64(w.Sheep))
		wolves = append(wolves, float64(w.Wolves))

		// Population ratio
		logErr := math.Log(float64(w.Sheep) / float64(w.Wolves) / targetRatio)
		ratioSum += math.Exp(-logErr * logErr)

		// Energy health
		sheepH := math.Exp(-math.Pow((w.SheepEnergyP50/maxEnergy-targetEnergy)/0.25, 2))
		wolfH := math.Exp(-math.Pow((w.WolfEnergyP50/maxEnergy-targetEnergy)/0.25, 2))
		energySum += (sheepH + wolfH) / 2.0

		// Hunting activity
		huntSum += 1.0 - math.Exp(-w.KillsPerWolf)
	}

	if count == 0 {
		return 0
	}
	n := float64(count)

	stabilityScore := 0.0
	if count >= 2 {
		cvSheep := cv(sheep)
		cvWolves := cv(wolves)
		stabilityScore = math.Exp(-(cvSheep*cvSheep + cvWolves*cvWolves))
	}

	quality := qualityWeightRatio*ratioSum/n +
		qualityWeightStability*stabilityScore +
		qualityWeightEnergy*energySum/n +
		qualityWeightHunting*huntSum/n

	return clamp01(quality)
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
