package main

import (
	"github.com/zeebo/errs/v2"

	"github.com/histdb/tdigest"
	"github.com/histdb/tdigest/frame"
)

const (
	codecBinary  = "binary"
	codecMsgpack = "msgpack"
)

func encodeSnapshot(cfg Config, s tdigest.Snapshot) ([]byte, error) {
	kind, err := frame.ParseKind(cfg.Frame)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch cfg.Codec {
	case codecBinary:
		data, err = s.MarshalBinary()
	case codecMsgpack:
		data, err = s.MarshalMsg(nil)
	default:
		err = errs.Errorf("unknown codec: %q", cfg.Codec)
	}
	if err != nil {
		return nil, err
	}

	return frame.Encode(kind, data)
}

// isMsgpack reports if data starts with a msgpack map header. Binary
// snapshots start with a small version byte.
func isMsgpack(data []byte) bool {
	return len(data) > 0 && (data[0]&0xf0 == 0x80 || data[0] == 0xde || data[0] == 0xdf)
}

// decodeSnapshot reads either codec in any frame.
func decodeSnapshot(buf []byte) (s tdigest.Snapshot, err error) {
	data, err := frame.Decode(buf)
	if err != nil {
		return s, err
	}

	if isMsgpack(data) {
		rest, err := s.UnmarshalMsg(data)
		if err != nil {
			return s, err
		}
		if len(rest) > 0 {
			return s, errs.Errorf("%d trailing bytes after snapshot", len(rest))
		}
		return s, nil
	}

	return s, s.UnmarshalBinary(data)
}
