package object

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Delta streams open with the base and result sizes as little-endian base-128
// varints, then a sequence of instructions: a byte with the high bit set
// copies a range of the base, selected by up to 4 offset and 3 size bytes
// flagged in its low bits; any other nonzero byte inserts that many literal
// bytes.
const (
	deltaCopyFlag   = 0x80
	maxDeltaInsert  = 0x7f
	maxDeltaCopy    = 0xffff
	defaultCopySize = 0x10000
)

var errDistanceTruncated = errors.New("ofs-delta distance truncated")

func encodeDeltaVarint(v uint64) []byte { return binary.AppendUvarint(nil, v) }

// encodeOfsDeltaDistance encodes how far back an OFS_DELTA base starts. Each
// continuation byte adds one before shifting, so every length has a distinct
// value range.
func encodeOfsDeltaDistance(distance uint64) []byte {
	var tmp [10]byte
	i := len(tmp) - 1
	tmp[i] = byte(distance & 0x7f)
	for distance >>= 7; distance > 0; distance >>= 7 {
		distance--
		i--
		tmp[i] = byte(distance&0x7f) | 0x80
	}
	return append([]byte(nil), tmp[i:]...)
}

func decodeOfsDeltaDistance(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, errDistanceTruncated
	}
	dist := uint64(data[0] & 0x7f)
	n := 1
	for data[n-1]&0x80 != 0 {
		if n == len(data) {
			return 0, 0, errDistanceTruncated
		}
		dist = (dist+1)<<7 | uint64(data[n]&0x7f)
		n++
	}
	return dist, n, nil
}

// buildDelta encodes target against base as a copy of their common prefix
// followed by literal inserts. It is only as clever as fixtures need.
func buildDelta(base, target []byte) []byte {
	out := binary.AppendUvarint(nil, uint64(len(base)))
	out = binary.AppendUvarint(out, uint64(len(target)))

	prefix := 0
	for prefix < min(len(base), len(target)) && base[prefix] == target[prefix] {
		prefix++
	}
	for pos := 0; pos < prefix; pos += maxDeltaCopy {
		out = appendDeltaCopy(out, pos, min(prefix-pos, maxDeltaCopy))
	}
	for rest := target[prefix:]; len(rest) > 0; {
		n := min(len(rest), maxDeltaInsert)
		out = append(out, byte(n))
		out = append(out, rest[:n]...)
		rest = rest[n:]
	}
	return out
}

// appendDeltaCopy appends a copy instruction, omitting zero argument bytes.
func appendDeltaCopy(out []byte, offset, size int) []byte {
	at := len(out)
	out = append(out, deltaCopyFlag)
	for i := range 4 {
		if b := byte(offset >> (8 * i)); b != 0 {
			out[at] |= 1 << i
			out = append(out, b)
		}
	}
	for i := range 3 {
		if b := byte(size >> (8 * i)); b != 0 {
			out[at] |= 0x10 << i
			out = append(out, b)
		}
	}
	return out
}

// deltaSizes reads the base and result sizes heading a delta. The input may
// be a prefix of the stream.
func deltaSizes(delta []byte) (base, result uint64, err error) {
	base, n := binary.Uvarint(delta)
	if n <= 0 {
		return 0, 0, errors.New("delta base size unreadable")
	}
	result, m := binary.Uvarint(delta[n:])
	if m <= 0 {
		return 0, 0, errors.New("delta result size unreadable")
	}
	return base, result, nil
}

// applyDelta rebuilds the delta's target from base.
func applyDelta(base, delta []byte) ([]byte, error) {
	baseSize, n := binary.Uvarint(delta)
	if n <= 0 {
		return nil, errors.New("delta base size unreadable")
	}
	if baseSize != uint64(len(base)) {
		return nil, fmt.Errorf("delta base size mismatch: got %d want %d", baseSize, len(base))
	}
	resultSize, m := binary.Uvarint(delta[n:])
	if m <= 0 {
		return nil, errors.New("delta result size unreadable")
	}
	ops := delta[n+m:]

	out := make([]byte, 0, min(resultSize, 1<<26))
	for len(ops) > 0 {
		cmd := ops[0]
		ops = ops[1:]
		switch {
		case cmd&deltaCopyFlag != 0:
			var args [7]uint64
			for bit := range 7 {
				if cmd&(1<<bit) == 0 {
					continue
				}
				if len(ops) == 0 {
					return nil, errors.New("delta copy arguments truncated")
				}
				args[bit] = uint64(ops[0])
				ops = ops[1:]
			}
			offset := args[0] | args[1]<<8 | args[2]<<16 | args[3]<<24
			size := args[4] | args[5]<<8 | args[6]<<16
			if size == 0 {
				size = defaultCopySize
			}
			if offset+size > uint64(len(base)) {
				return nil, fmt.Errorf("delta copy [%d,+%d) outside %d-byte base", offset, size, len(base))
			}
			out = append(out, base[offset:offset+size]...)
		case cmd == 0:
			return nil, errors.New("delta instruction 0 is reserved")
		default:
			if int(cmd) > len(ops) {
				return nil, errors.New("delta insert truncated")
			}
			out = append(out, ops[:cmd]...)
			ops = ops[cmd:]
		}
	}
	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("delta result size mismatch: got %d expected %d", len(out), resultSize)
	}
	return out, nil
}
