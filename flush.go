package tdigest

import (
	"cmp"
	"slices"
)

func byMean(a, b Centroid) int { return cmp.Compare(a.Mean, b.Mean) }

// flush merges the temp buffer into the main centroids. It does nothing if
// the temp buffer is empty so that idle flushes don't recompress main.
func (d *T) flush() {
	if len(d.temp) == 0 {
		return
	}

	slices.SortFunc(d.temp, byMean)

	total := d.mainWeight + d.tempWeight
	out := make([]Centroid, 0, len(d.main)+len(d.temp))

	var before, index float64
	for i, j := 0, 0; i < len(d.main) || j < len(d.temp); {
		var next Centroid

		// ties go to temp so output is reproducible for equal means.
		if j >= len(d.temp) || (i < len(d.main) && d.main[i].Mean < d.temp[j].Mean) {
			next = d.main[i]
			i++
		} else {
			next = d.temp[j]
			j++
		}

		out, index = d.mergeOne(out, before, total, index, next)
		before += next.Weight
	}

	d.main = out
	d.mainWeight += d.tempWeight
	d.temp = d.temp[:0]
	d.tempWeight = 0
}

// mergeOne either appends next to out as a new centroid or fuses it into the
// last one, depending on how far next would move the scale index from the
// last committed boundary. It returns the updated output and boundary.
func (d *T) mergeOne(out []Centroid, before, total, index float64, next Centroid) ([]Centroid, float64) {
	nextIndex := d.scaleIndex((before + next.Weight) / total)

	if len(out) == 0 || nextIndex-index > 1 {
		return append(out, next), d.scaleIndex(before / total)
	}

	last := &out[len(out)-1]
	last.Weight += next.Weight
	last.Mean += (next.Mean - last.Mean) * next.Weight / last.Weight

	return out, index
}
