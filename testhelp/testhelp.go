// Package testhelp generates sample data for tests and benchmarks.
package testhelp

import (
	"math"
	"slices"

	"github.com/zeebo/mwc"
	"gonum.org/v1/gonum/stat"
)

// Uniform returns a float64 in [0, 1).
func Uniform(rng *mwc.T) float64 {
	return float64(rng.Uint64()>>11) / (1 << 53)
}

// Exponential returns a sample from the exponential distribution with rate 1.
func Exponential(rng *mwc.T) float64 {
	return -math.Log(1 - Uniform(rng))
}

// Values returns n samples from gen.
func Values(n int, gen func() float64) []float64 {
	vs := make([]float64, n)
	for i := range vs {
		vs[i] = gen()
	}
	return vs
}

// Shuffle permutes v in place.
func Shuffle[T any](rng *mwc.T, v []T) {
	for i := len(v) - 1; i > 0; i-- {
		j := rng.Uint64n(uint64(i) + 1)
		v[i], v[j] = v[j], v[i]
	}
}

// Sorted returns a sorted copy of v.
func Sorted(v []float64) []float64 {
	s := slices.Clone(v)
	slices.Sort(s)
	return s
}

// Quantile returns the empirical q quantile of sorted.
func Quantile(sorted []float64, q float64) float64 {
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}
