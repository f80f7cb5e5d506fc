package tdigest

import "slices"

// Snapshot is the transferable state of a flushed digest.
type Snapshot struct {
	Compression float64
	Min         float64
	Max         float64
	Centroids   []Centroid // ascending by mean
}

// Count returns the total weight of the centroids.
func (s Snapshot) Count() (total float64) {
	for _, c := range s.Centroids {
		total += c.Weight
	}
	return total
}

// Snapshot flushes the digest and returns a copy of its merged state.
func (d *T) Snapshot() Snapshot {
	d.flush()
	return Snapshot{
		Compression: d.compression,
		Min:         d.min,
		Max:         d.max,
		Centroids:   slices.Clone(d.main),
	}
}

// FromSnapshot rebuilds a digest from s. The centroids are used as they are:
// they must be ascending by mean and lie within [s.Min, s.Max]. The total
// weight is recomputed from the centroids.
func FromSnapshot(s Snapshot) *T {
	d := &T{
		compression: s.Compression,
		tempCap:     capacity(s.Compression),
		main:        slices.Clone(s.Centroids),
		mainWeight:  s.Count(),
		min:         s.Min,
		max:         s.Max,
	}
	d.temp = make([]Centroid, 0, d.tempCap)
	return d
}
