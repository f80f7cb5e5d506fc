// Package registry keeps a set of named digests that can be updated, queried
// and collected concurrently.
package registry

import (
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/zeebo/mwc"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/histdb/tdigest"
	"github.com/histdb/tdigest/sizeof"
)

const numShards = 16

// DefaultCompression is used when Config.Compression is zero.
const DefaultCompression = 100

// Config controls a registry.
type Config struct {
	// Compression of every digest the registry creates.
	Compression float64

	// Seed mixes into the per digest generators that order merges.
	Seed uint64

	Logger *zap.Logger
}

type entry struct {
	name string
	id   uint32

	mu  sync.Mutex
	d   *tdigest.T
	rng *mwc.T
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// T is a registry of digests keyed by name. It is safe for concurrent use.
type T struct {
	_ [0]func() // no equality

	cfg    Config
	log    *zap.Logger
	shards [numShards]shard

	mu    sync.Mutex
	next  uint32
	byID  map[uint32]*entry
	dirty *roaring.Bitmap
}

// New returns an empty registry.
func New(cfg Config) *T {
	if cfg.Compression == 0 {
		cfg.Compression = DefaultCompression
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := &T{
		cfg:   cfg,
		log:   cfg.Logger,
		byID:  make(map[uint32]*entry),
		dirty: roaring.New(),
	}
	for i := range r.shards {
		r.shards[i].entries = make(map[string]*entry)
	}
	return r
}

// Compression returns the compression used for new digests.
func (r *T) Compression() float64 { return r.cfg.Compression }

func (r *T) shard(name string) *shard {
	return &r.shards[xxh3.HashString(name)%numShards]
}

func (r *T) lookup(name string) *entry {
	s := r.shard(name)
	s.mu.RLock()
	e := s.entries[name]
	s.mu.RUnlock()
	return e
}

func (r *T) markDirty(id uint32) {
	r.mu.Lock()
	if _, ok := r.byID[id]; ok {
		r.dirty.Add(id)
	}
	r.mu.Unlock()
}

// update runs fn on the digest for name, creating it if necessary. A digest
// is only published once fn succeeds on it.
func (r *T) update(name string, fn func(d *tdigest.T, rng tdigest.Source) error) error {
	e := r.lookup(name)

	if e == nil {
		fresh := &entry{
			name: name,
			d:    tdigest.New(r.cfg.Compression),
			rng:  mwc.New(r.cfg.Seed, xxh3.HashString(name)),
		}
		if err := fn(fresh.d, fresh.rng); err != nil {
			return err
		}

		s := r.shard(name)
		s.mu.Lock()
		e = s.entries[name]
		if e == nil {
			r.mu.Lock()
			fresh.id = r.next
			r.next++
			r.byID[fresh.id] = fresh
			r.dirty.Add(fresh.id)
			r.mu.Unlock()

			s.entries[name] = fresh
		}
		s.mu.Unlock()

		if e == nil {
			r.log.Debug("digest created",
				zap.String("name", name),
				zap.Uint32("id", fresh.id))
			return nil
		}
	}

	e.mu.Lock()
	err := fn(e.d, e.rng)
	e.mu.Unlock()

	if err != nil {
		return err
	}

	// marked after the update so a concurrent Collect can't clear the bit
	// before the change is visible.
	r.markDirty(e.id)
	return nil
}

// Observe adds value with the given weight to the digest for name.
func (r *T) Observe(name string, value, weight float64) error {
	err := r.update(name, func(d *tdigest.T, _ tdigest.Source) error {
		return d.Add(value, weight)
	})
	if err != nil {
		r.log.Debug("observe rejected",
			zap.String("name", name),
			zap.Float64("value", value),
			zap.Float64("weight", weight),
			zap.Error(err))
	}
	return err
}

// Merge folds the digest described by snap into the digest for name.
func (r *T) Merge(name string, snap tdigest.Snapshot) error {
	src := tdigest.FromSnapshot(snap)
	err := r.update(name, func(d *tdigest.T, rng tdigest.Source) error {
		return d.Merge(src, rng)
	})
	if err != nil {
		r.log.Warn("merge failed",
			zap.String("name", name),
			zap.Int("centroids", len(snap.Centroids)),
			zap.Error(err))
	}
	return err
}

// Quantile returns the estimate of the q quantile for name. It returns false
// if there is no digest for name.
func (r *T) Quantile(name string, q float64) (float64, bool, error) {
	e := r.lookup(name)
	if e == nil {
		return 0, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.d.Quantile(q)
	return v, true, err
}

// Snapshot returns the state of the digest for name. It returns false if
// there is no digest for name.
func (r *T) Snapshot(name string) (tdigest.Snapshot, bool) {
	e := r.lookup(name)
	if e == nil {
		return tdigest.Snapshot{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.d.Snapshot(), true
}

// Remove drops the digest for name and reports if it existed.
func (r *T) Remove(name string) bool {
	s := r.shard(name)
	s.mu.Lock()
	e, ok := s.entries[name]
	delete(s.entries, name)
	s.mu.Unlock()

	if !ok {
		return false
	}

	r.mu.Lock()
	delete(r.byID, e.id)
	r.dirty.Remove(e.id)
	r.mu.Unlock()

	r.log.Debug("digest removed",
		zap.String("name", name),
		zap.Uint32("id", e.id))
	return true
}

// Len returns the number of digests.
func (r *T) Len() (n int) {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

func (r *T) entries() (es []*entry) {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, e := range s.entries {
			es = append(es, e)
		}
		s.mu.RUnlock()
	}
	return es
}

// Names returns the sorted names of every digest.
func (r *T) Names() []string {
	es := r.entries()
	names := make([]string, 0, len(es))
	for _, e := range es {
		names = append(names, e.name)
	}
	slices.Sort(names)
	return names
}

// visit returns how many entries were passed to cb.
func (r *T) visit(es []*entry, cb func(name string, s tdigest.Snapshot) bool) int {
	for i, e := range es {
		e.mu.Lock()
		s := e.d.Snapshot()
		e.mu.Unlock()

		if !cb(e.name, s) {
			return i + 1
		}
	}
	return len(es)
}

// Iterate calls cb with a snapshot of every digest in no particular order
// until cb returns false.
func (r *T) Iterate(cb func(name string, s tdigest.Snapshot) bool) {
	r.visit(r.entries(), cb)
}

// Collect calls cb with a snapshot of every digest changed since the last
// call to Collect, in creation order, and forgets the changes. If cb returns
// false the remaining digests stay changed. Changes made while Collect runs
// may be reported again by the next call.
func (r *T) Collect(cb func(name string, s tdigest.Snapshot) bool) {
	r.mu.Lock()
	es := make([]*entry, 0, r.dirty.GetCardinality())
	it := r.dirty.Iterator()
	for it.HasNext() {
		if e, ok := r.byID[it.Next()]; ok {
			es = append(es, e)
		}
	}
	r.dirty.Clear()
	r.mu.Unlock()

	n := r.visit(es, cb)

	if n < len(es) {
		r.mu.Lock()
		for _, e := range es[n:] {
			if _, ok := r.byID[e.id]; ok {
				r.dirty.Add(e.id)
			}
		}
		r.mu.Unlock()
	}

	r.log.Debug("collected digests",
		zap.Int("dirty", len(es)),
		zap.Int("visited", n))
}

// Size returns an estimate of the memory held by the registry in bytes.
func (r *T) Size() (n uint64) {
	for _, e := range r.entries() {
		e.mu.Lock()
		n += e.d.Size() + sizeof.String(e.name)
		e.mu.Unlock()
	}

	r.mu.Lock()
	n += r.dirty.GetSizeInBytes()
	r.mu.Unlock()

	return n
}
