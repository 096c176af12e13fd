package object

import (
	"bytes"
	"cmp"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
)

// idx v2 layout: magic, version, 256-entry fanout, then per-object tables of
// names, CRC32s and 32-bit offsets, a table of 64-bit offsets for entries
// past 2 GiB, and the pack and index checksums.
const (
	packIndexVersion    = 2
	packIndexHeaderSize = 8
	packIndexFanoutSize = 256 * 4
	// An offset word with the high bit set indexes the 64-bit table.
	packIndexLargeOffsetBit = uint32(1 << 31)
)

var packIndexMagic = [4]byte{0xff, 't', 'O', 'c'}

var errPackIndexTruncated = errors.New("pack index truncated")

// PackIndexEntry locates one object in a pack.
type PackIndexEntry struct {
	Hash   Hash
	Offset uint64
	CRC32  uint32
}

// PackIndex is a parsed idx v2 file. Entries are sorted by hash.
type PackIndex struct {
	fanout        [256]uint32
	entries       []PackIndexEntry
	PackChecksum  Hash
	IndexChecksum Hash
}

// Len returns the number of objects the index lists.
func (idx *PackIndex) Len() int { return len(idx.entries) }

// Entries returns a copy of the index rows in hash order.
func (idx *PackIndex) Entries() []PackIndexEntry { return slices.Clone(idx.entries) }

// Find looks h up within its fanout bucket.
func (idx *PackIndex) Find(h Hash) (PackIndexEntry, bool) {
	raw, err := hashHexToBytes(h)
	if err != nil {
		return PackIndexEntry{}, false
	}
	var lo int
	if raw[0] > 0 {
		lo = int(idx.fanout[raw[0]-1])
	}
	bucket := idx.entries[lo:idx.fanout[raw[0]]]
	i := sort.Search(len(bucket), func(i int) bool { return bucket[i].Hash >= h })
	if i < len(bucket) && bucket[i].Hash == h {
		return bucket[i], true
	}
	return PackIndexEntry{}, false
}

// ReadPackIndex parses data as an idx v2 file and verifies its checksum.
func ReadPackIndex(data []byte) (*PackIndex, error) {
	if len(data) < packIndexHeaderSize+packIndexFanoutSize+2*HashSize {
		return nil, fmt.Errorf("pack index too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:4], packIndexMagic[:]) {
		return nil, fmt.Errorf("pack index magic %x", data[:4])
	}
	if v := binary.BigEndian.Uint32(data[4:8]); v != packIndexVersion {
		return nil, fmt.Errorf("pack index version %d not supported", v)
	}
	body, trailer := data[:len(data)-HashSize], data[len(data)-HashSize:]
	if sum := sha1.Sum(body); !bytes.Equal(sum[:], trailer) {
		return nil, errors.New("pack index checksum mismatch")
	}

	idx := &PackIndex{IndexChecksum: hashFromBytes(trailer)}
	rest := data[packIndexHeaderSize:]
	for i := range idx.fanout {
		idx.fanout[i] = binary.BigEndian.Uint32(rest[4*i:])
		if i > 0 && idx.fanout[i] < idx.fanout[i-1] {
			return nil, fmt.Errorf("pack index fanout decreases at bucket %d", i)
		}
	}
	rest = rest[packIndexFanoutSize:]

	n := int(idx.fanout[255])
	if len(rest) < n*(HashSize+8)+2*HashSize {
		return nil, errPackIndexTruncated
	}
	names, rest := rest[:n*HashSize], rest[n*HashSize:]
	crcs, rest := rest[:4*n], rest[4*n:]
	small, rest := rest[:4*n], rest[4*n:]
	large := rest[:len(rest)-2*HashSize]
	if len(large)%8 != 0 {
		return nil, fmt.Errorf("pack index has %d stray bytes", len(large)%8)
	}

	idx.entries = make([]PackIndexEntry, n)
	for i := range idx.entries {
		e := &idx.entries[i]
		e.Hash = hashFromBytes(names[i*HashSize : (i+1)*HashSize])
		e.CRC32 = binary.BigEndian.Uint32(crcs[4*i:])
		word := binary.BigEndian.Uint32(small[4*i:])
		e.Offset = uint64(word)
		if word&packIndexLargeOffsetBit != 0 {
			slot := int(word &^ packIndexLargeOffsetBit)
			if 8*(slot+1) > len(large) {
				return nil, errPackIndexTruncated
			}
			e.Offset = binary.BigEndian.Uint64(large[8*slot:])
		}
		if i > 0 && e.Hash <= idx.entries[i-1].Hash {
			return nil, fmt.Errorf("pack index names out of order at row %d", i)
		}
	}
	idx.PackChecksum = hashFromBytes(rest[len(rest)-2*HashSize : len(rest)-HashSize])
	return idx, nil
}

// WritePackIndex writes an idx v2 file for entries, in any order, and
// returns the index checksum.
func WritePackIndex(w io.Writer, entries []PackIndexEntry, packChecksum Hash) (Hash, error) {
	type row struct {
		raw []byte
		PackIndexEntry
	}
	rows := make([]row, len(entries))
	for i, e := range entries {
		raw, err := hashHexToBytes(e.Hash)
		if err != nil {
			return "", fmt.Errorf("pack index entry %d: %w", i, err)
		}
		rows[i] = row{raw: raw, PackIndexEntry: e}
	}
	slices.SortFunc(rows, func(a, b row) int { return cmp.Compare(a.Hash, b.Hash) })
	packSum, err := hashHexToBytes(packChecksum)
	if err != nil {
		return "", fmt.Errorf("pack checksum: %w", err)
	}

	buf := make([]byte, 0, packIndexHeaderSize+packIndexFanoutSize+len(rows)*(HashSize+8)+3*HashSize)
	buf = append(buf, packIndexMagic[:]...)
	buf = binary.BigEndian.AppendUint32(buf, packIndexVersion)

	var counts [256]uint32
	for _, r := range rows {
		counts[r.raw[0]]++
	}
	var total uint32
	for _, c := range counts {
		total += c
		buf = binary.BigEndian.AppendUint32(buf, total)
	}
	for _, r := range rows {
		buf = append(buf, r.raw...)
	}
	for _, r := range rows {
		buf = binary.BigEndian.AppendUint32(buf, r.CRC32)
	}
	var large []uint64
	for _, r := range rows {
		if r.Offset < uint64(packIndexLargeOffsetBit) {
			buf = binary.BigEndian.AppendUint32(buf, uint32(r.Offset))
			continue
		}
		buf = binary.BigEndian.AppendUint32(buf, packIndexLargeOffsetBit|uint32(len(large)))
		large = append(large, r.Offset)
	}
	for _, off := range large {
		buf = binary.BigEndian.AppendUint64(buf, off)
	}
	buf = append(buf, packSum...)
	sum := sha1.Sum(buf)
	buf = append(buf, sum[:]...)

	if _, err := w.Write(buf); err != nil {
		return "", fmt.Errorf("write pack index: %w", err)
	}
	return hashFromBytes(sum[:]), nil
}
