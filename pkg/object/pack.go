package object

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	packHeaderSize       = 12
	packTrailerSize      = HashSize
	supportedPackVersion = 2
	// Longest entry header plus OFS_DELTA distance or REF_DELTA base id.
	maxEntryPrefix = 10 + 10 + HashSize
)

var packMagic = [4]byte{'P', 'A', 'C', 'K'}

var errEntryHeaderTruncated = errors.New("entry header truncated")

// PackObjectType is the 3-bit type stored in a pack entry header.
type PackObjectType uint8

const (
	PackCommit   PackObjectType = 1
	PackTree     PackObjectType = 2
	PackBlob     PackObjectType = 3
	PackTag      PackObjectType = 4
	PackOfsDelta PackObjectType = 6
	PackRefDelta PackObjectType = 7
)

// packObjectTypes indexes whole-object types by their pack code.
var packObjectTypes = [...]ObjectType{
	PackCommit: TypeCommit,
	PackTree:   TypeTree,
	PackBlob:   TypeBlob,
	PackTag:    TypeTag,
}

// IsDelta reports whether the entry payload is a delta against a base.
func (t PackObjectType) IsDelta() bool { return t == PackOfsDelta || t == PackRefDelta }

// ObjectType returns the object type of a whole (non-delta) entry.
func (t PackObjectType) ObjectType() (ObjectType, bool) {
	if int(t) >= len(packObjectTypes) || packObjectTypes[t] == "" {
		return "", false
	}
	return packObjectTypes[t], true
}

// PackTypeOf returns the pack code used to store objects of type t.
func PackTypeOf(t ObjectType) (PackObjectType, error) {
	for code, ot := range packObjectTypes {
		if ot != "" && ot == t {
			return PackObjectType(code), nil
		}
	}
	return 0, fmt.Errorf("no pack encoding for object type %q", t)
}

// PackHeader is the 12-byte header opening every pack: "PACK", then the
// version and object count as big-endian uint32s.
type PackHeader struct {
	Version    uint32
	NumObjects uint32
}

// Marshal encodes h.
func (h PackHeader) Marshal() []byte {
	buf := append(make([]byte, 0, packHeaderSize), packMagic[:]...)
	buf = binary.BigEndian.AppendUint32(buf, h.Version)
	return binary.BigEndian.AppendUint32(buf, h.NumObjects)
}

// UnmarshalPackHeader decodes and validates a pack header.
func UnmarshalPackHeader(data []byte) (*PackHeader, error) {
	if len(data) < packHeaderSize {
		return nil, fmt.Errorf("pack header is %d bytes", len(data))
	}
	if [4]byte(data[:4]) != packMagic {
		return nil, fmt.Errorf("pack magic %q", data[:4])
	}
	h := &PackHeader{
		Version:    binary.BigEndian.Uint32(data[4:8]),
		NumObjects: binary.BigEndian.Uint32(data[8:12]),
	}
	if h.Version != supportedPackVersion {
		return nil, fmt.Errorf("pack version %d not supported", h.Version)
	}
	return h, nil
}

// encodePackEntryHeader writes the type and inflated size of an entry. The
// first byte holds a continuation bit, the type and the low 4 size bits;
// further bytes carry 7 size bits each, least significant first.
func encodePackEntryHeader(objType PackObjectType, size uint64) []byte {
	out := []byte{byte(objType&0x7)<<4 | byte(size&0x0f)}
	for size >>= 4; size > 0; size >>= 7 {
		out[len(out)-1] |= 0x80
		out = append(out, byte(size&0x7f))
	}
	return out
}

// decodePackEntryHeader is the inverse of encodePackEntryHeader and also
// returns how many bytes the header used.
func decodePackEntryHeader(data []byte) (PackObjectType, uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, 0, errEntryHeaderTruncated
	}
	objType := PackObjectType(data[0] >> 4 & 0x7)
	size := uint64(data[0] & 0x0f)
	n := 1
	for shift := uint(4); data[n-1]&0x80 != 0; shift += 7 {
		if n == len(data) {
			return 0, 0, 0, errEntryHeaderTruncated
		}
		if shift > 57 {
			return 0, 0, 0, errors.New("entry header size overflows 64 bits")
		}
		size |= uint64(data[n]&0x7f) << shift
		n++
	}
	return objType, size, n, nil
}
