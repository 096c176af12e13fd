package object

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"slices"

	"github.com/klauspost/compress/zlib"
)

var errPackFinished = errors.New("pack writer already finished")

// deflate zlib-compresses raw the way Git stores object payloads.
func deflate(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(raw)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return buf.Bytes(), nil
}

// PackWriter streams a version 2 pack holding a fixed number of entries and
// records the index row of each one. Call Finish to append the checksum.
type PackWriter struct {
	out      io.Writer
	sum      hash.Hash
	offset   uint64
	want     uint32
	entries  []PackIndexEntry
	finished bool
}

// NewPackWriter writes the pack header announcing numObjects entries.
func NewPackWriter(out io.Writer, numObjects uint32) (*PackWriter, error) {
	pw := &PackWriter{out: out, sum: sha1.New(), want: numObjects}
	header := PackHeader{Version: supportedPackVersion, NumObjects: numObjects}
	if err := pw.emit(header.Marshal(), nil); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

// Entries returns the index rows written so far, in pack order.
func (p *PackWriter) Entries() []PackIndexEntry { return slices.Clone(p.entries) }

// WriteObject stores data whole.
func (p *PackWriter) WriteObject(objType ObjectType, data []byte) (PackIndexEntry, error) {
	code, err := PackTypeOf(objType)
	if err != nil {
		return PackIndexEntry{}, err
	}
	return p.writeEntry(HashObject(objType, data), encodePackEntryHeader(code, uint64(len(data))), data)
}

// WriteOfsDelta stores target as an OFS_DELTA against the earlier entry base,
// whose content is baseData.
func (p *PackWriter) WriteOfsDelta(base PackIndexEntry, baseData []byte, objType ObjectType, target []byte) (PackIndexEntry, error) {
	if base.Offset >= p.offset {
		return PackIndexEntry{}, fmt.Errorf("ofs-delta base at %d is not before %d", base.Offset, p.offset)
	}
	delta := buildDelta(baseData, target)
	head := encodePackEntryHeader(PackOfsDelta, uint64(len(delta)))
	head = append(head, encodeOfsDeltaDistance(p.offset-base.Offset)...)
	return p.writeEntry(HashObject(objType, target), head, delta)
}

// WriteRefDelta stores target as a REF_DELTA against baseID.
func (p *PackWriter) WriteRefDelta(baseID Hash, baseData []byte, objType ObjectType, target []byte) (PackIndexEntry, error) {
	return p.WriteRawRefDelta(HashObject(objType, target), baseID, buildDelta(baseData, target))
}

// WriteRawRefDelta stores delta as a REF_DELTA entry named id without
// checking that the delta produces an object with that id.
func (p *PackWriter) WriteRawRefDelta(id, baseID Hash, delta []byte) (PackIndexEntry, error) {
	raw, err := hashHexToBytes(baseID)
	if err != nil {
		return PackIndexEntry{}, fmt.Errorf("ref-delta base: %w", err)
	}
	head := append(encodePackEntryHeader(PackRefDelta, uint64(len(delta))), raw...)
	return p.writeEntry(id, head, delta)
}

func (p *PackWriter) writeEntry(id Hash, head, payload []byte) (PackIndexEntry, error) {
	switch {
	case p.finished:
		return PackIndexEntry{}, errPackFinished
	case uint32(len(p.entries)) == p.want:
		return PackIndexEntry{}, fmt.Errorf("pack already holds the %d announced entries", p.want)
	}
	compressed, err := deflate(payload)
	if err != nil {
		return PackIndexEntry{}, fmt.Errorf("pack entry %s: %w", id, err)
	}
	entry := PackIndexEntry{Hash: id, Offset: p.offset}
	crc := crc32.NewIEEE()
	if err := p.emit(head, crc); err != nil {
		return PackIndexEntry{}, fmt.Errorf("pack entry %s header: %w", id, err)
	}
	if err := p.emit(compressed, crc); err != nil {
		return PackIndexEntry{}, fmt.Errorf("pack entry %s payload: %w", id, err)
	}
	entry.CRC32 = crc.Sum32()
	p.entries = append(p.entries, entry)
	return entry, nil
}

// emit writes b to the pack, feeding the running checksum and, when given,
// an entry CRC.
func (p *PackWriter) emit(b []byte, crc hash.Hash32) error {
	if _, err := p.out.Write(b); err != nil {
		return err
	}
	p.sum.Write(b)
	if crc != nil {
		crc.Write(b)
	}
	p.offset += uint64(len(b))
	return nil
}

// Finish appends the pack checksum and returns it. Every announced entry must
// have been written.
func (p *PackWriter) Finish() (Hash, error) {
	if p.finished {
		return "", errPackFinished
	}
	if n := uint32(len(p.entries)); n != p.want {
		return "", fmt.Errorf("pack announced %d entries, wrote %d", p.want, n)
	}
	sum := p.sum.Sum(nil)
	if _, err := p.out.Write(sum); err != nil {
		return "", fmt.Errorf("write pack checksum: %w", err)
	}
	p.finished = true
	return hashFromBytes(sum), nil
}
