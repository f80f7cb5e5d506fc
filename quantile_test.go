package tdigest

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/zeebo/assert"
	"github.com/zeebo/mwc"

	"github.com/histdb/tdigest/testhelp"
)

var testQuantiles = []float64{0, 0.001, 0.01, 0.1, 0.25, 0.5, 0.75, 0.9, 0.99, 0.999, 1}

func TestQuantile(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		d := New(100)

		q, err := d.Quantile(0.5)
		assert.NoError(t, err)
		assert.That(t, math.IsNaN(q))
	})

	t.Run("OutOfRange", func(t *testing.T) {
		d := New(100)
		assert.NoError(t, d.Add(1, 1))

		for _, q := range []float64{-0.1, 1.1, math.NaN(), math.Inf(1)} {
			_, err := d.Quantile(q)
			assert.Error(t, err)
			assert.That(t, errors.Is(err, OutOfRange))
		}

		// a rejected call does not flush.
		assert.Equal(t, len(d.temp), 1)
		assert.Equal(t, len(d.main), 0)
	})

	t.Run("Single", func(t *testing.T) {
		d := New(100)
		assert.NoError(t, d.Add(17.25, 1))

		for _, q := range []float64{0, 0.5, 1} {
			v, err := d.Quantile(q)
			assert.NoError(t, err)
			assert.Equal(t, v, 17.25)
		}
	})

	t.Run("Median", func(t *testing.T) {
		d := New(100)
		for i := 1; i <= 1000; i++ {
			assert.NoError(t, d.Add(float64(i), 1))
		}

		v, err := d.Quantile(0.5)
		assert.NoError(t, err)
		assert.That(t, math.Abs(v-500) <= 0.05*999)
	})

	t.Run("Extremes", func(t *testing.T) {
		d := New(100)
		for i := 1; i <= 1000; i++ {
			assert.NoError(t, d.Add(float64(i), 1))
		}

		lo, err := d.Quantile(0)
		assert.NoError(t, err)
		assert.Equal(t, lo, 1.)

		hi, err := d.Quantile(1)
		assert.NoError(t, err)
		assert.Equal(t, hi, 1000.)
	})

	t.Run("Monotone", func(t *testing.T) {
		rng := mwc.New(5, 6)
		d := New(100)
		for i := 0; i < 50000; i++ {
			assert.NoError(t, d.Add(math.Exp(8*testhelp.Uniform(rng)), 1))
		}

		prev := math.Inf(-1)
		for q := 0.0; q <= 1; q += 0.001 {
			v, err := d.Quantile(q)
			assert.NoError(t, err)
			assert.That(t, v >= prev)
			prev = v
		}
	})

	t.Run("Accuracy", func(t *testing.T) {
		rng := mwc.New(7, 8)
		d := New(200)

		data := testhelp.Values(100000, func() float64 { return testhelp.Uniform(rng) })
		for _, v := range data {
			assert.NoError(t, d.Add(v, 1))
		}
		sorted := testhelp.Sorted(data)

		for _, q := range testQuantiles {
			exp := testhelp.Quantile(sorted, q)
			got, err := d.Quantile(q)
			assert.NoError(t, err)
			assert.That(t, math.Abs(got-exp) < 0.01)
		}
	})
}

func TestOrderInvariance(t *testing.T) {
	rng := mwc.New(9, 10)

	data := testhelp.Values(20000, func() float64 { return testhelp.Uniform(rng) * 100 })

	shuffled := slices.Clone(data)
	testhelp.Shuffle(rng, shuffled)
	ascending := testhelp.Sorted(data)
	descending := slices.Clone(ascending)
	slices.Reverse(descending)

	for _, compression := range []float64{100, 300} {
		var ds []*T
		for _, order := range [][]float64{data, shuffled, ascending, descending} {
			d := New(compression)
			for _, v := range order {
				assert.NoError(t, d.Add(v, 1))
			}
			ds = append(ds, d)
		}

		for _, q := range testQuantiles {
			exp := testhelp.Quantile(ascending, q)
			for _, d := range ds {
				got, err := d.Quantile(q)
				assert.NoError(t, err)
				assert.That(t, math.Abs(got-exp) < 2)
			}
		}
	}
}

func TestCDF(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		d := New(100)

		p, err := d.CDF(3)
		assert.NoError(t, err)
		assert.That(t, math.IsNaN(p))
	})

	t.Run("NaN", func(t *testing.T) {
		d := New(100)
		assert.NoError(t, d.Add(1, 1))

		_, err := d.CDF(math.NaN())
		assert.That(t, errors.Is(err, InvalidArgument))
	})

	t.Run("Bounds", func(t *testing.T) {
		d := New(100)
		for i := 1; i <= 1000; i++ {
			assert.NoError(t, d.Add(float64(i), 1))
		}

		p, err := d.CDF(0)
		assert.NoError(t, err)
		assert.Equal(t, p, 0.)

		p, err = d.CDF(1000)
		assert.NoError(t, err)
		assert.Equal(t, p, 1.)

		p, err = d.CDF(500)
		assert.NoError(t, err)
		assert.That(t, math.Abs(p-0.5) < 0.01)
	})

	t.Run("Inverse", func(t *testing.T) {
		rng := mwc.New(11, 12)
		d := New(100)
		for i := 0; i < 10000; i++ {
			assert.NoError(t, d.Add(testhelp.Uniform(rng), 1))
		}

		for _, q := range []float64{0.01, 0.1, 0.5, 0.9, 0.99} {
			v, err := d.Quantile(q)
			assert.NoError(t, err)

			p, err := d.CDF(v)
			assert.NoError(t, err)
			assert.That(t, math.Abs(p-q) < 1e-9)
		}
	})
}
