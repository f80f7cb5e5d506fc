package tdigest

import (
	"math"

	"github.com/zeebo/mwc"
)

// Source supplies the randomness that orders centroids replayed by Merge.
// *mwc.T satisfies it.
type Source interface {
	Uint64n(n uint64) uint64
}

// Merge adds the samples summarized by o into d. The merged centroids of o
// are replayed through Add in an order shuffled by rng, and the unmerged ones
// after them in their buffered order. A nil rng uses a fresh mwc generator.
//
// o is only read. Neither digest may be used by anything else for the
// duration of the call. o may be d.
func (d *T) Merge(o *T, rng Source) error {
	if rng == nil {
		rng = mwc.Rand()
	}

	// copies, so that flushes triggered by Add can't pull the rug when o == d.
	main := append([]Centroid(nil), o.main...)
	temp := append([]Centroid(nil), o.temp...)
	omin, omax := o.min, o.max

	// a sorted replay would always fuse in the same direction and skew
	// the centroids toward one end of the distribution.
	for i := len(main) - 1; i > 0; i-- {
		j := rng.Uint64n(uint64(i) + 1)
		main[i], main[j] = main[j], main[i]
	}

	for _, c := range main {
		if err := d.Add(c.Mean, c.Weight); err != nil {
			return err
		}
	}
	for _, c := range temp {
		if err := d.Add(c.Mean, c.Weight); err != nil {
			return err
		}
	}

	// the replayed means sit inside o's extremes, which are still exact.
	d.min = math.Min(d.min, omin)
	d.max = math.Max(d.max, omax)

	return nil
}
