package tdigest

import (
	"github.com/zeebo/errs/v2"

	"github.com/histdb/tdigest/rwutils"
)

const snapshotVersion = 1

// mean and weight
const centroidBytes = 16

// AppendTo implements rwutils.RW.
func (s Snapshot) AppendTo(w *rwutils.W) {
	w.Uint8(snapshotVersion)
	w.Float64(s.Compression)
	w.Float64(s.Min)
	w.Float64(s.Max)
	w.Varint(uint64(len(s.Centroids)))
	for _, c := range s.Centroids {
		w.Float64(c.Mean)
		w.Float64(c.Weight)
	}
}

// ReadFrom implements rwutils.RW.
func (s *Snapshot) ReadFrom(r *rwutils.R) {
	if v := r.Uint8(); v != snapshotVersion {
		r.Invalid(errs.Errorf("unknown snapshot version: %d", v))
		return
	}

	s.Compression = r.Float64()
	s.Min = r.Float64()
	s.Max = r.Float64()

	n := r.Varint()
	if n > uint64(r.Remaining()/centroidBytes) {
		r.Invalid(errs.Errorf("snapshot claims %d centroids with %d bytes left", n, r.Remaining()))
		return
	}

	s.Centroids = nil
	if n > 0 {
		s.Centroids = make([]Centroid, n)
	}
	for i := range s.Centroids {
		s.Centroids[i].Mean = r.Float64()
		s.Centroids[i].Weight = r.Float64()
	}
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s Snapshot) MarshalBinary() ([]byte, error) {
	var w rwutils.W
	w.Init(make([]byte, 0, 1+3*8+9+centroidBytes*len(s.Centroids)))
	s.AppendTo(&w)
	return w.Done(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *Snapshot) UnmarshalBinary(data []byte) error {
	var r rwutils.R
	r.Init(data)
	s.ReadFrom(&r)

	rest, err := r.Done()
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return errs.Errorf("%d trailing bytes after snapshot", len(rest))
	}
	return nil
}
