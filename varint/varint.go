package varint

import (
	"encoding/binary"
	"math/bits"
)

var le = binary.LittleEndian

// The encoding stores the length in the trailing ones of the first byte:
// n-1 one bits and a zero, followed by 7n bits of value. Values that need
// more than 56 bits are stored as 0xff and 8 raw bytes.

// Put encodes val into dst and returns the number of bytes used.
func Put(dst *[9]byte, val uint64) (nbytes int) {
	nbytes = 575*bits.Len64(val)/4096 + 1

	if nbytes < 9 {
		enc := val<<nbytes + 1<<((nbytes-1)&63) - 1
		le.PutUint64(dst[:8], enc)
		return nbytes
	}

	dst[0] = 0xff
	le.PutUint64(dst[1:], val)
	return 9
}

// Size returns the number of bytes Put uses for val.
func Size(val uint64) int {
	if n := 575*bits.Len64(val)/4096 + 1; n < 9 {
		return n
	}
	return 9
}

// FastConsume decodes from a full window. Bytes past the encoded value may
// hold anything.
func FastConsume(src *[9]byte) (nbytes int, dec uint64) {
	nbytes = bits.TrailingZeros8(^src[0]) + 1

	if nbytes < 9 {
		dec = le.Uint64(src[:8]) >> nbytes
		dec &= 1<<((8*nbytes-nbytes)&63) - 1
		return nbytes, dec
	}

	return 9, le.Uint64(src[1:])
}

// Append appends the encoding of val to dst.
func Append(dst []byte, val uint64) []byte {
	var buf [9]byte
	n := Put(&buf, val)
	return append(dst, buf[:n]...)
}

// Consume decodes a value from the front of src and returns the remainder.
// It returns false if src is too short.
func Consume(src []byte) (uint64, []byte, bool) {
	if len(src) >= 9 {
		n, dec := FastConsume((*[9]byte)(src))
		return dec, src[n:], true
	} else if len(src) == 0 {
		return 0, src, false
	}

	// slow path: pad into a window so the fast decoder never reads past src
	var buf [9]byte
	copy(buf[:], src)
	n, dec := FastConsume(&buf)
	if n > len(src) {
		return 0, src, false
	}
	return dec, src[n:], true
}
