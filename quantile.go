package tdigest

import "math"

// Quantile returns an estimate of the value at quantile q, which must be in
// [0, 1]. It returns NaN for an empty digest. Quantile flushes the digest.
func (d *T) Quantile(q float64) (float64, error) {
	if !(q >= 0 && q <= 1) {
		return math.NaN(), OutOfRange.Errorf("quantile must be in [0, 1]: %v", q)
	}

	d.flush()
	if d.mainWeight == 0 {
		return math.NaN(), nil
	}

	target := q * d.mainWeight
	w, lower := 0.0, d.min

	for i, c := range d.main {
		upper := d.upperBound(i)
		if w+c.Weight >= target {
			p := (target - w) / c.Weight
			return lower + p*(upper-lower), nil
		}
		w += c.Weight
		lower = upper
	}

	return d.max, nil
}

// CDF returns an estimate of the fraction of weight at or below x. It is the
// inverse of Quantile and uses the same interpolation. It returns NaN for an
// empty digest. CDF flushes the digest.
func (d *T) CDF(x float64) (float64, error) {
	if math.IsNaN(x) {
		return math.NaN(), InvalidArgument.Errorf("value must not be NaN")
	}

	d.flush()
	switch {
	case d.mainWeight == 0:
		return math.NaN(), nil
	case x < d.min:
		return 0, nil
	case x >= d.max:
		return 1, nil
	}

	w, lower := 0.0, d.min

	for i, c := range d.main {
		upper := d.upperBound(i)
		if x < upper {
			// lower <= x < upper, so the span is never empty here.
			w += c.Weight * (x - lower) / (upper - lower)
			return w / d.mainWeight, nil
		}
		w += c.Weight
		lower = upper
	}

	return 1, nil
}

// upperBound is the right edge of the span covered by main[i]: the midpoint
// to the next centroid, or max for the last one.
func (d *T) upperBound(i int) float64 {
	if i+1 < len(d.main) {
		return d.main[i].Mean + (d.main[i+1].Mean-d.main[i].Mean)/2
	}
	return d.max
}
