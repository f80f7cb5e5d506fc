package rwutils

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/errs/v2"

	"github.com/histdb/tdigest/varint"
)

var le = binary.LittleEndian

type RW interface {
	AppendTo(w *W)
	ReadFrom(r *R)
}

//
// writer
//

// W appends little endian values to a byte slice.
type W struct {
	buf []byte
}

func (w *W) Init(buf []byte) { *w = W{buf: buf[:0]} }
func (w *W) Done() []byte    { return w.buf }
func (w *W) Len() int        { return len(w.buf) }

func (w *W) Uint8(x uint8)     { w.buf = append(w.buf, x) }
func (w *W) Uint16(x uint16)   { w.buf = le.AppendUint16(w.buf, x) }
func (w *W) Uint32(x uint32)   { w.buf = le.AppendUint32(w.buf, x) }
func (w *W) Uint64(x uint64)   { w.buf = le.AppendUint64(w.buf, x) }
func (w *W) Float64(x float64) { w.Uint64(math.Float64bits(x)) }
func (w *W) Varint(x uint64)   { w.buf = varint.Append(w.buf, x) }
func (w *W) Bytes(x []byte)    { w.buf = append(w.buf, x...) }

//
// reader
//

// R consumes values written by W. The first failure sticks: every later read
// returns the zero value and Done reports the error.
type R struct {
	buf []byte
	err error
}

func (r *R) Init(buf []byte) { *r = R{buf: buf} }

// Done returns the unread bytes and the first error encountered.
func (r *R) Done() ([]byte, error) { return r.buf, r.err }

func (r *R) Remaining() int { return len(r.buf) }

// Invalid marks the reader as failed with err unless it already failed.
func (r *R) Invalid(err error) {
	if r.err == nil {
		r.err = err
		r.buf = nil
	}
}

func (r *R) Uint8() (x uint8) {
	if r.err == nil {
		if len(r.buf) >= 1 {
			x, r.buf = r.buf[0], r.buf[1:]
		} else {
			r.bad(1)
		}
	}
	return
}

func (r *R) Uint16() (x uint16) {
	if r.err == nil {
		if len(r.buf) >= 2 {
			x, r.buf = le.Uint16(r.buf), r.buf[2:]
		} else {
			r.bad(2)
		}
	}
	return
}

func (r *R) Uint32() (x uint32) {
	if r.err == nil {
		if len(r.buf) >= 4 {
			x, r.buf = le.Uint32(r.buf), r.buf[4:]
		} else {
			r.bad(4)
		}
	}
	return
}

func (r *R) Uint64() (x uint64) {
	if r.err == nil {
		if len(r.buf) >= 8 {
			x, r.buf = le.Uint64(r.buf), r.buf[8:]
		} else {
			r.bad(8)
		}
	}
	return
}

func (r *R) Float64() float64 { return math.Float64frombits(r.Uint64()) }

func (r *R) Varint() (x uint64) {
	if r.err == nil {
		var ok bool
		x, r.buf, ok = varint.Consume(r.buf)
		if !ok {
			r.Invalid(errs.Errorf("short buffer: truncated varint"))
		}
	}
	return
}

func (r *R) Bytes(n int) (x []byte) {
	if r.err == nil {
		if n >= 0 && len(r.buf) >= n {
			x, r.buf = r.buf[:n:n], r.buf[n:]
		} else {
			r.bad(n)
		}
	}
	return
}

func (r *R) bad(n int) {
	r.Invalid(errs.Errorf("short buffer: needed %d bytes, have %d", n, len(r.buf)))
}
