package systems

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"
)

// clamp clamps v between minVal and maxVal.
func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b r2.Vec) float64 {
	return r2.Norm(r2.Sub(a, b))
}

// Direction returns v scaled to unit length, or the zero vector for a zero v.
func Direction(v r2.Vec) r2.Vec {
	n := r2.Norm(v)
	if n == 0 {
		return r2.Vec{}
	}
	return r2.Scale(1/n, v)
}

// wrap maps v into [0, size) by whole multiples of size.
func wrap(v, size float64) float64 {
	v = math.Mod(v, size)
	if v < 0 {
		v += size
	}
	if v >= size {
		v = 0
	}
	return v
}

// Randomized returns v jittered uniformly by up to the relative amount f.
func Randomized(rng *rand.Rand, v, f float64) float64 {
	return v * (1 + f*(2*rng.Float64()-1))
}

// randomVec returns a point with both coordinates uniform in [lo, hi).
func randomVec(rng *rand.Rand, lo, hi float64) r2.Vec {
	return r2.Vec{
		X: lo + rng.Float64()*(hi-lo),
		Y: lo + rng.Float64()*(hi-lo),
	}
}
