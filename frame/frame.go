// Package frame wraps encoded snapshots in an optionally compressed frame.
//
// A frame is [kind u8][uncompressed length u32 LE][payload].
package frame

import (
	"encoding/binary"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/errs/v2"
)

// Corrupt is returned when a frame can not be decoded.
const Corrupt errs.Tag = "corrupt frame"

// Kind is the compression applied to a frame payload.
type Kind uint8

const (
	None Kind = iota
	LZ4
	Zstd
)

const headerSize = 5

// frames refuse to claim more than this many uncompressed bytes.
const maxSize = 1 << 30

// upper bound on the lz4 expansion of a block.
const maxRatio = 255

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, errs.Errorf("unknown frame kind: %q", s)
	}
}

var (
	encoders sync.Pool
	decoders sync.Pool
)

func getEncoder() (*zstd.Encoder, error) {
	if v := encoders.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1))
}

func getDecoder() (*zstd.Decoder, error) {
	if v := decoders.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(maxSize),
		zstd.WithDecoderConcurrency(1))
}

func header(kind Kind, n int, capacity int) []byte {
	buf := make([]byte, headerSize, headerSize+capacity)
	buf[0] = byte(kind)
	binary.LittleEndian.PutUint32(buf[1:], uint32(n))
	return buf
}

// Encode frames data compressed with kind. Empty data and LZ4 input that does
// not shrink are stored as None.
func Encode(kind Kind, data []byte) ([]byte, error) {
	if len(data) > maxSize {
		return nil, errs.Errorf("frame payload too large: %d bytes", len(data))
	} else if len(data) == 0 {
		kind = None
	}

	switch kind {
	case None:
		return append(header(None, len(data), len(data)), data...), nil

	case LZ4:
		buf := header(LZ4, len(data), lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf[headerSize:cap(buf)], nil)
		if err != nil {
			return nil, errs.Wrap(err)
		}
		if n == 0 || n >= len(data) {
			return Encode(None, data)
		}
		return buf[:headerSize+n], nil

	case Zstd:
		enc, err := getEncoder()
		if err != nil {
			return nil, errs.Wrap(err)
		}
		defer encoders.Put(enc)

		return enc.EncodeAll(data, header(Zstd, len(data), len(data)/2)), nil

	default:
		return nil, errs.Errorf("unknown frame kind: %d", kind)
	}
}

// Decode returns the payload of the frame in buf. The result may alias buf.
func Decode(buf []byte) ([]byte, error) {
	if len(buf) < headerSize {
		return nil, Corrupt.Errorf("short header: %d bytes", len(buf))
	}
	kind, size, payload := Kind(buf[0]), binary.LittleEndian.Uint32(buf[1:]), buf[headerSize:]
	if size > maxSize {
		return nil, Corrupt.Errorf("frame claims %d bytes", size)
	}

	switch kind {
	case None:
		if uint32(len(payload)) != size {
			return nil, Corrupt.Errorf("payload has %d bytes, header says %d", len(payload), size)
		}
		return payload, nil

	case LZ4:
		if uint64(size) > maxRatio*uint64(len(payload)) {
			return nil, Corrupt.Errorf("lz4 payload of %d bytes can not hold %d", len(payload), size)
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, Corrupt.Errorf("lz4: %v", err)
		}
		if uint32(n) != size {
			return nil, Corrupt.Errorf("lz4 produced %d bytes, header says %d", n, size)
		}
		return out, nil

	case Zstd:
		dec, err := getDecoder()
		if err != nil {
			return nil, errs.Wrap(err)
		}
		defer decoders.Put(dec)

		out, err := dec.DecodeAll(payload, make([]byte, 0, min(size, 1<<20)))
		if err != nil {
			return nil, Corrupt.Errorf("zstd: %v", err)
		}
		if uint32(len(out)) != size {
			return nil, Corrupt.Errorf("zstd produced %d bytes, header says %d", len(out), size)
		}
		return out, nil

	default:
		return nil, Corrupt.Errorf("unknown kind: %d", kind)
	}
}
