// Package frame encodes the fixed-size status record pushed to clients.
//
// Each record is 12 bytes, big-endian:
//
//	     +----+----+----+----+----+----+----+----+
//	  0  |       millisecond timestamp           |
//	     +----+----+----+----+----+----+----+----+
//	  8  | 00 | 00 | 00 | ST |
//	     +----+----+----+----+
//
// The timestamp is the controller's monotonic millisecond counter, not
// time-of-day. Bytes 8-10 are reserved and always zero. ST is 1 while the
// pump is active and 0 otherwise. There is no delimiter beyond the fixed
// length and no acknowledgment.
package frame

import (
	"encoding/binary"
	"fmt"
)

// Size is the wire length of one status record.
const Size = 12

// Frame is one decoded status record.
type Frame struct {
	Stamp  uint64 // monotonic milliseconds
	Active bool
}

// Encode returns the 12-byte wire form of the frame.
func Encode(f Frame) []byte {
	buf := make([]byte, Size)
	binary.BigEndian.PutUint64(buf[0:8], f.Stamp)
	if f.Active {
		buf[11] = 1
	}
	return buf
}

// Decode parses a 12-byte wire record. Any non-zero state byte reads as
// active; the reserved bytes are ignored.
func Decode(b []byte) (Frame, error) {
	if len(b) != Size {
		return Frame{}, fmt.Errorf("frame: invalid length %d", len(b))
	}
	return Frame{
		Stamp:  binary.BigEndian.Uint64(b[0:8]),
		Active: b[11] != 0,
	}, nil
}
