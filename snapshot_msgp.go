package tdigest

import (
	"math"

	"github.com/tinylib/msgp/msgp"
	"github.com/zeebo/errs/v2"
)

// smallest encoding of a [mean, weight] pair: fixarray header and two float32s.
const minCentroidMsgsize = 1 + 2*msgp.Float32Size

// Msgsize implements msgp.Sizer. It is an upper bound.
func (s *Snapshot) Msgsize() int {
	return msgp.MapHeaderSize +
		msgp.StringPrefixSize + len("compression") + msgp.Float64Size +
		msgp.StringPrefixSize + len("min") + msgp.Float64Size +
		msgp.StringPrefixSize + len("max") + msgp.Float64Size +
		msgp.StringPrefixSize + len("centroids") + msgp.ArrayHeaderSize +
		len(s.Centroids)*(msgp.ArrayHeaderSize+2*msgp.Float64Size)
}

// MarshalMsg implements msgp.Marshaler.
func (s *Snapshot) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, s.Msgsize())

	o = msgp.AppendMapHeader(o, 4)
	o = msgp.AppendString(o, "compression")
	o = msgp.AppendFloat64(o, s.Compression)
	o = msgp.AppendString(o, "min")
	o = msgp.AppendFloat64(o, s.Min)
	o = msgp.AppendString(o, "max")
	o = msgp.AppendFloat64(o, s.Max)

	o = msgp.AppendString(o, "centroids")
	o = msgp.AppendArrayHeader(o, uint32(len(s.Centroids)))
	for _, c := range s.Centroids {
		o = msgp.AppendArrayHeader(o, 2)
		o = msgp.AppendFloat64(o, c.Mean)
		o = msgp.AppendFloat64(o, c.Weight)
	}

	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler. Unknown keys are skipped and
// missing keys decode as an empty digest would.
func (s *Snapshot) UnmarshalMsg(bts []byte) (o []byte, err error) {
	*s = Snapshot{Min: math.Inf(1), Max: math.Inf(-1)}

	var fields uint32
	fields, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, errs.Wrap(err)
	}

	for ; fields > 0; fields-- {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, errs.Wrap(err)
		}

		switch msgp.UnsafeString(field) {
		case "compression":
			s.Compression, bts, err = msgp.ReadFloat64Bytes(bts)
		case "min":
			s.Min, bts, err = msgp.ReadFloat64Bytes(bts)
		case "max":
			s.Max, bts, err = msgp.ReadFloat64Bytes(bts)
		case "centroids":
			bts, err = s.unmarshalCentroids(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, errs.Wrap(err)
		}
	}

	return bts, nil
}

func (s *Snapshot) unmarshalCentroids(bts []byte) (_ []byte, err error) {
	var n uint32
	n, bts, err = msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	if uint64(n)*minCentroidMsgsize > uint64(len(bts)) {
		return bts, errs.Errorf("snapshot claims %d centroids with %d bytes left", n, len(bts))
	}

	s.Centroids = nil
	if n > 0 {
		s.Centroids = make([]Centroid, n)
	}
	for i := range s.Centroids {
		var pair uint32
		pair, bts, err = msgp.ReadArrayHeaderBytes(bts)
		if err != nil {
			return bts, err
		}
		if pair != 2 {
			return bts, errs.Errorf("centroid %d has %d fields, want 2", i, pair)
		}
		s.Centroids[i].Mean, bts, err = msgp.ReadFloat64Bytes(bts)
		if err != nil {
			return bts, err
		}
		s.Centroids[i].Weight, bts, err = msgp.ReadFloat64Bytes(bts)
		if err != nil {
			return bts, err
		}
	}

	return bts, nil
}
