package tdigest

import (
	"math"

	"github.com/histdb/tdigest/sizeof"
)

// Centroid is the mean and accumulated weight of a cluster of nearby samples.
type Centroid struct {
	Mean   float64
	Weight float64
}

// T is a merging t-digest.
//
// It is not safe for concurrent use. Every method, Quantile included, may
// flush buffered samples and so must be serialized with every other call on
// the same digest.
type T struct {
	_ [0]func() // no equality

	compression float64
	tempCap     int

	main       []Centroid // sorted by mean
	mainWeight float64
	temp       []Centroid
	tempWeight float64

	min float64
	max float64
}

// New returns an empty digest. Compression trades memory for accuracy and is
// expected in (0, 1000]; values in [20, 1000] are recommended.
func New(compression float64) *T {
	d := &T{
		compression: compression,
		tempCap:     capacity(compression),
	}
	d.temp = make([]Centroid, 0, d.tempCap)
	d.Reset()
	return d
}

// Reset discards every sample, keeping the compression.
func (d *T) Reset() {
	d.main = nil
	d.mainWeight = 0
	d.temp = d.temp[:0]
	d.tempWeight = 0
	d.min = math.Inf(1)
	d.max = math.Inf(-1)
}

// Add records value with the given weight. The value must be finite and the
// weight finite and positive, otherwise an InvalidArgument error is returned
// and the digest is left untouched.
func (d *T) Add(value, weight float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return InvalidArgument.Errorf("value must be finite: %v", value)
	}
	if !(weight > 0) || math.IsInf(weight, 1) {
		return InvalidArgument.Errorf("weight must be positive and finite: %v", weight)
	}

	if len(d.temp) >= d.tempCap {
		d.flush()
	}

	d.min = math.Min(d.min, value)
	d.max = math.Max(d.max, value)

	d.temp = append(d.temp, Centroid{Mean: value, Weight: weight})
	d.tempWeight += weight

	return nil
}

// Compression returns the compression the digest was built with.
func (d *T) Compression() float64 { return d.compression }

// Count returns the total weight added to the digest.
func (d *T) Count() float64 { return d.mainWeight + d.tempWeight }

// Min returns the smallest value added, or +Inf if the digest is empty.
func (d *T) Min() float64 { return d.min }

// Max returns the largest value added, or -Inf if the digest is empty.
func (d *T) Max() float64 { return d.max }

// Sum returns the weighted sum of every value added. Fusing centroids keeps
// the weighted mean, so this is exact up to rounding.
func (d *T) Sum() (sum float64) {
	for _, c := range d.main {
		sum += c.Mean * c.Weight
	}
	for _, c := range d.temp {
		sum += c.Mean * c.Weight
	}
	return sum
}

// Centroids flushes the digest and calls cb with every merged centroid in
// ascending order of mean until cb returns false.
func (d *T) Centroids(cb func(c Centroid) bool) {
	d.flush()
	for _, c := range d.main {
		if !cb(c) {
			return
		}
	}
}

// Size returns an approximation of the bytes held by the digest.
func (d *T) Size() uint64 {
	return 0 +
		/* compression */ 8 +
		/* tempCap     */ 8 +
		/* main        */ sizeof.Slice(d.main) +
		/* mainWeight  */ 8 +
		/* temp        */ sizeof.Slice(d.temp) +
		/* tempWeight  */ 8 +
		/* min         */ 8 +
		/* max         */ 8 +
		0
}
