package registry

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/zeebo/assert"
	"github.com/zeebo/mwc"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/histdb/tdigest"
)

func collect(r *T) (names []string) {
	r.Collect(func(name string, _ tdigest.Snapshot) bool {
		names = append(names, name)
		return true
	})
	return names
}

func TestRegistry(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		r := New(Config{})
		assert.Equal(t, r.Compression(), float64(DefaultCompression))
		assert.Equal(t, r.Len(), 0)
	})

	t.Run("Observe", func(t *testing.T) {
		r := New(Config{})
		for i := 1; i <= 1000; i++ {
			assert.NoError(t, r.Observe("a", float64(i), 1))
			assert.NoError(t, r.Observe("b", float64(-i), 1))
		}

		v, ok, err := r.Quantile("a", 0.5)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.That(t, math.Abs(v-500) <= 0.05*999)

		v, ok, err = r.Quantile("b", 0)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, v, -1000.)

		_, ok, err = r.Quantile("c", 0.5)
		assert.NoError(t, err)
		assert.False(t, ok)

		_, _, err = r.Quantile("a", 2)
		assert.That(t, errors.Is(err, tdigest.OutOfRange))
	})

	t.Run("Invalid", func(t *testing.T) {
		r := New(Config{})

		err := r.Observe("a", math.NaN(), 1)
		assert.That(t, errors.Is(err, tdigest.InvalidArgument))
		assert.Equal(t, r.Len(), 0)
		assert.Nil(t, collect(r))

		assert.NoError(t, r.Observe("a", 1, 1))
		collect(r)

		err = r.Observe("a", 1, -1)
		assert.That(t, errors.Is(err, tdigest.InvalidArgument))
		assert.Nil(t, collect(r))

		s, ok := r.Snapshot("a")
		assert.True(t, ok)
		assert.Equal(t, s.Count(), 1.)
	})

	t.Run("Snapshot", func(t *testing.T) {
		r := New(Config{Compression: 50})
		for i := 0; i < 100; i++ {
			assert.NoError(t, r.Observe("a", float64(i), 2))
		}

		s, ok := r.Snapshot("a")
		assert.True(t, ok)
		assert.Equal(t, s.Compression, 50.)
		assert.Equal(t, s.Count(), 200.)
		assert.Equal(t, s.Min, 0.)
		assert.Equal(t, s.Max, 99.)

		_, ok = r.Snapshot("b")
		assert.False(t, ok)
	})

	t.Run("Merge", func(t *testing.T) {
		src := tdigest.New(100)
		for i := 501; i <= 1000; i++ {
			assert.NoError(t, src.Add(float64(i), 1))
		}

		r := New(Config{})
		for i := 1; i <= 500; i++ {
			assert.NoError(t, r.Observe("a", float64(i), 1))
		}
		assert.NoError(t, r.Merge("a", src.Snapshot()))
		assert.NoError(t, r.Merge("b", src.Snapshot()))

		s, _ := r.Snapshot("a")
		assert.Equal(t, s.Count(), 1000.)
		assert.Equal(t, s.Min, 1.)
		assert.Equal(t, s.Max, 1000.)

		s, _ = r.Snapshot("b")
		assert.Equal(t, s.Count(), 500.)
		assert.Equal(t, s.Min, 501.)
	})

	t.Run("MergeDeterministic", func(t *testing.T) {
		src := tdigest.New(100)
		for i := 0; i < 5000; i++ {
			assert.NoError(t, src.Add(float64(i), 1))
		}

		x, y := New(Config{Seed: 7}), New(Config{Seed: 7})
		for _, r := range []*T{x, y} {
			assert.NoError(t, r.Observe("a", 1, 1))
			assert.NoError(t, r.Merge("a", src.Snapshot()))
		}

		sx, _ := x.Snapshot("a")
		sy, _ := y.Snapshot("a")
		assert.DeepEqual(t, sx, sy)
	})

	t.Run("MergeSeeded", func(t *testing.T) {
		src := tdigest.New(100)
		for i := 0; i < 5000; i++ {
			assert.NoError(t, src.Add(float64(i), 1))
		}

		r := New(Config{Seed: 9})
		assert.NoError(t, r.Merge("a", src.Snapshot()))

		d := tdigest.New(DefaultCompression)
		assert.NoError(t, d.Merge(src, mwc.New(9, xxh3.HashString("a"))))

		s, ok := r.Snapshot("a")
		assert.That(t, ok)
		assert.DeepEqual(t, s, d.Snapshot())
	})

	t.Run("Remove", func(t *testing.T) {
		r := New(Config{})
		assert.NoError(t, r.Observe("a", 1, 1))
		assert.NoError(t, r.Observe("b", 1, 1))

		assert.True(t, r.Remove("a"))
		assert.False(t, r.Remove("a"))
		assert.Equal(t, r.Len(), 1)
		assert.DeepEqual(t, collect(r), []string{"b"})

		_, ok := r.Snapshot("a")
		assert.False(t, ok)

		// recreated digests start over.
		assert.NoError(t, r.Observe("a", 5, 1))
		s, _ := r.Snapshot("a")
		assert.Equal(t, s.Count(), 1.)
		assert.DeepEqual(t, collect(r), []string{"a"})
	})

	t.Run("Names", func(t *testing.T) {
		r := New(Config{})
		for _, name := range []string{"zed", "alpha", "mid", "beta"} {
			assert.NoError(t, r.Observe(name, 1, 1))
		}
		assert.DeepEqual(t, r.Names(), []string{"alpha", "beta", "mid", "zed"})
		assert.Equal(t, r.Len(), 4)
	})

	t.Run("Iterate", func(t *testing.T) {
		r := New(Config{})
		for i := 0; i < 20; i++ {
			assert.NoError(t, r.Observe(fmt.Sprint(i), float64(i), 1))
		}

		seen := map[string]float64{}
		r.Iterate(func(name string, s tdigest.Snapshot) bool {
			seen[name] = s.Max
			return true
		})
		assert.Equal(t, len(seen), 20)
		assert.Equal(t, seen["7"], 7.)

		n := 0
		r.Iterate(func(string, tdigest.Snapshot) bool {
			n++
			return n < 5
		})
		assert.Equal(t, n, 5)
	})

	t.Run("Size", func(t *testing.T) {
		r := New(Config{})
		empty := r.Size()
		for i := 0; i < 10; i++ {
			assert.NoError(t, r.Observe(fmt.Sprint(i), 1, 1))
		}
		assert.That(t, r.Size() > empty)
	})
}

func TestCollect(t *testing.T) {
	t.Run("Dirty", func(t *testing.T) {
		r := New(Config{})
		for _, name := range []string{"a", "b", "c"} {
			assert.NoError(t, r.Observe(name, 1, 1))
		}

		// creation order.
		assert.DeepEqual(t, collect(r), []string{"a", "b", "c"})
		assert.Nil(t, collect(r))

		assert.NoError(t, r.Observe("b", 2, 1))
		assert.NoError(t, r.Observe("b", 3, 1))
		assert.DeepEqual(t, collect(r), []string{"b"})
		assert.Nil(t, collect(r))

		// reads don't dirty.
		_, _, _ = r.Quantile("a", 0.5)
		_, _ = r.Snapshot("c")
		assert.Nil(t, collect(r))
	})

	t.Run("Stop", func(t *testing.T) {
		r := New(Config{})
		for _, name := range []string{"a", "b", "c", "d"} {
			assert.NoError(t, r.Observe(name, 1, 1))
		}

		var got []string
		r.Collect(func(name string, _ tdigest.Snapshot) bool {
			got = append(got, name)
			return len(got) < 2
		})
		assert.DeepEqual(t, got, []string{"a", "b"})
		assert.DeepEqual(t, collect(r), []string{"c", "d"})
	})

	t.Run("Snapshots", func(t *testing.T) {
		r := New(Config{})
		for i := 0; i < 10; i++ {
			assert.NoError(t, r.Observe("a", float64(i), 1))
		}

		r.Collect(func(name string, s tdigest.Snapshot) bool {
			assert.Equal(t, name, "a")
			assert.Equal(t, s.Count(), 10.)
			return true
		})
	})
}

func TestConcurrent(t *testing.T) {
	r := New(Config{})

	const workers, per = 8, 2000
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				name := fmt.Sprint("digest", i%10)
				assert.NoError(t, r.Observe(name, float64(i), 1))
				if i%100 == 0 {
					collect(r)
				}
			}
		}(w)
	}
	wg.Wait()

	var total float64
	r.Iterate(func(_ string, s tdigest.Snapshot) bool {
		total += s.Count()
		return true
	})
	assert.Equal(t, total, float64(workers*per))
	assert.Equal(t, r.Len(), 10)
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := New(Config{Logger: zap.New(core)})

	assert.NoError(t, r.Observe("a", 1, 1))
	assert.NoError(t, r.Observe("a", 2, 1))
	assert.Error(t, r.Observe("a", math.Inf(1), 1))
	assert.True(t, r.Remove("a"))

	assert.Equal(t, logs.FilterMessage("digest created").Len(), 1)
	assert.Equal(t, logs.FilterMessage("observe rejected").Len(), 1)
	assert.Equal(t, logs.FilterMessage("digest removed").Len(), 1)

	created := logs.FilterMessage("digest created").All()[0]
	assert.Equal(t, created.ContextMap()["name"], "a")
}

func BenchmarkObserve(b *testing.B) {
	r := New(Config{})
	names := make([]string, 64)
	for i := range names {
		names[i] = fmt.Sprint("digest", i)
	}

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = r.Observe(names[i%len(names)], float64(i), 1)
			i++
		}
	})
}
