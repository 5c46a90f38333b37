package scenario

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/ecosys/config"
	"github.com/pthm-cable/ecosys/systems"
)

// seedFertility fills every cell with a dynamic supply region whose
// stock and regrowth factor scale with a normalized noise field sampled
// at the cell's grid coordinates.
func seedFertility(grid [][]systems.Region, f *Fertility, cfg *config.Config) {
	fc := cfg.Fertility
	if f.Frequency != nil {
		fc.Frequency = *f.Frequency
	}
	if f.Octaves != nil {
		fc.Octaves = *f.Octaves
	}
	if f.Persistence != nil {
		fc.Persistence = *f.Persistence
	}

	noise := opensimplex.NewNormalized(f.Seed)
	for row := range grid {
		for col := range grid[row] {
			n := octaveNoise(noise, float64(col), float64(row), fc.Octaves, fc.Frequency, fc.Persistence)
			food := lerp(fc.MinFood, fc.MaxFood, n)
			factor := lerp(fc.MinFactor, fc.MaxFactor, n)
			grid[row][col] = systems.NewDynamicSupplyRegion(food, factor, &cfg.Regions)
		}
	}
}

// octaveNoise sums octaves of noise, doubling frequency and scaling
// amplitude by persistence each octave. The result stays in [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	if maxVal == 0 {
		return 0
	}
	return total / maxVal
}

func lerp(lo, hi, t float64) float64 {
	return lo + (hi-lo)*t
}
