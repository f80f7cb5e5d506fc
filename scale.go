package tdigest

import "math"

// capacity is the number of samples buffered before a flush. The constants
// are fixed so that flush points are reproducible.
func capacity(compression float64) int {
	c := min(max(compression, 20), 925)
	return int(math.Floor(7.5 + 0.37*c - 0.0002*c*c))
}

// scaleIndex maps a cumulative weight fraction to the index space. The
// arcsine packs many indexes near the tails and few near the median, so
// centroids stay narrow where relative error matters most.
func (d *T) scaleIndex(q float64) float64 {
	// cumulative sums can land a hair outside of [0, 1]
	q = min(max(q, 0), 1)
	return d.compression * (math.Asin(2*q-1)/math.Pi + 0.5)
}
