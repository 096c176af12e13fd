package object

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/klauspost/compress/zlib"
)

// packFile is an opened pack with its index, read through ReadAt so one
// instance can serve concurrent lookups.
type packFile struct {
	path string
	f    *os.File
	idx  *PackIndex
	// rows are the index entries ordered by pack offset.
	rows []PackIndexEntry
	// end is the offset of the trailing checksum.
	end uint64
}

// packEntry is the decoded prefix of one pack entry.
type packEntry struct {
	offset     uint64
	typ        PackObjectType
	size       uint64
	dataOffset uint64
	next       uint64
	baseOffset uint64
	baseID     Hash
	crc        uint32
}

// span is the number of on-disk bytes the entry occupies.
func (e *packEntry) span() uint64 { return e.next - e.offset }

func openPackFile(packPath string, idx *PackIndex) (*packFile, error) {
	f, err := os.Open(packPath)
	if err != nil {
		return nil, fmt.Errorf("open pack %s: %w", packPath, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat pack %s: %w", packPath, err)
	}
	size := uint64(info.Size())
	if size < packHeaderSize+packTrailerSize {
		_ = f.Close()
		return nil, fmt.Errorf("pack %s too short: %d", packPath, size)
	}

	head := make([]byte, packHeaderSize)
	if _, err := f.ReadAt(head, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read pack header %s: %w", packPath, err)
	}
	header, err := UnmarshalPackHeader(head)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("pack %s: %w", packPath, err)
	}
	if int(header.NumObjects) != idx.Len() {
		_ = f.Close()
		return nil, fmt.Errorf("pack %s holds %d objects, index lists %d", packPath, header.NumObjects, idx.Len())
	}

	trailer := make([]byte, packTrailerSize)
	if _, err := f.ReadAt(trailer, int64(size-packTrailerSize)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read pack trailer %s: %w", packPath, err)
	}
	if hashFromBytes(trailer) != idx.PackChecksum {
		_ = f.Close()
		return nil, fmt.Errorf("pack %s checksum does not match its index", packPath)
	}

	rows := idx.Entries()
	sort.Slice(rows, func(i, j int) bool { return rows[i].Offset < rows[j].Offset })
	end := size - packTrailerSize
	if n := len(rows); n > 0 && (rows[0].Offset < packHeaderSize || rows[n-1].Offset >= end) {
		_ = f.Close()
		return nil, fmt.Errorf("pack %s index offsets outside pack body", packPath)
	}
	return &packFile{path: packPath, f: f, idx: idx, rows: rows, end: end}, nil
}

func (p *packFile) Close() error { return p.f.Close() }

// row returns the index row for the entry starting at offset and where that
// entry ends: the next entry's offset, or the trailer for the last entry.
func (p *packFile) row(offset uint64) (PackIndexEntry, uint64, bool) {
	i := sort.Search(len(p.rows), func(i int) bool { return p.rows[i].Offset >= offset })
	if i >= len(p.rows) || p.rows[i].Offset != offset {
		return PackIndexEntry{}, 0, false
	}
	if i+1 < len(p.rows) {
		return p.rows[i], p.rows[i+1].Offset, true
	}
	return p.rows[i], p.end, true
}

// entryAt decodes the entry header at offset, including its delta base
// reference.
func (p *packFile) entryAt(offset uint64) (*packEntry, error) {
	row, next, ok := p.row(offset)
	if !ok {
		return nil, fmt.Errorf("no entry at offset %d", offset)
	}

	buf := make([]byte, min(next-offset, maxEntryPrefix))
	if _, err := p.f.ReadAt(buf, int64(offset)); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read entry at %d: %w", offset, err)
	}
	typ, size, n, err := decodePackEntryHeader(buf)
	if err != nil {
		return nil, fmt.Errorf("entry at %d: %w", offset, err)
	}

	e := &packEntry{offset: offset, typ: typ, size: size, next: next, crc: row.CRC32}
	switch typ {
	case PackCommit, PackTree, PackBlob, PackTag:
	case PackOfsDelta:
		dist, m, err := decodeOfsDeltaDistance(buf[n:])
		if err != nil {
			return nil, fmt.Errorf("entry at %d: %w", offset, err)
		}
		if dist == 0 || dist > offset-packHeaderSize {
			return nil, fmt.Errorf("entry at %d: ofs-delta distance %d out of range", offset, dist)
		}
		e.baseOffset = offset - dist
		n += m
	case PackRefDelta:
		if len(buf)-n < HashSize {
			return nil, fmt.Errorf("entry at %d: ref-delta base truncated", offset)
		}
		e.baseID = hashFromBytes(buf[n : n+HashSize])
		n += HashSize
	default:
		return nil, fmt.Errorf("entry at %d: unknown pack type %d", offset, typ)
	}
	e.dataOffset = offset + uint64(n)
	if e.dataOffset >= next {
		return nil, fmt.Errorf("entry at %d: missing compressed payload", offset)
	}
	return e, nil
}

func (p *packFile) payloadReader(e *packEntry) (io.ReadCloser, error) {
	sr := io.NewSectionReader(p.f, int64(e.dataOffset), int64(e.next-e.dataOffset))
	zr, err := zlib.NewReader(sr)
	if err != nil {
		return nil, fmt.Errorf("entry at %d: zlib reader: %w", e.offset, err)
	}
	return zr, nil
}

// inflate decompresses the whole entry payload and checks it against the
// header size.
func (p *packFile) inflate(e *packEntry) ([]byte, error) {
	zr, err := p.payloadReader(e)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var buf bytes.Buffer
	buf.Grow(int(min(e.size, 1<<26)))
	if _, err := io.Copy(&buf, io.LimitReader(zr, int64(e.size)+1)); err != nil {
		return nil, fmt.Errorf("entry at %d: decompress: %w", e.offset, err)
	}
	if uint64(buf.Len()) != e.size {
		return nil, fmt.Errorf("entry at %d: size mismatch header=%d decoded=%d", e.offset, e.size, buf.Len())
	}
	return buf.Bytes(), nil
}

// inflatePrefix decompresses at most n bytes of the entry payload.
func (p *packFile) inflatePrefix(e *packEntry, n int) ([]byte, error) {
	zr, err := p.payloadReader(e)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	buf := make([]byte, min(uint64(n), e.size))
	if _, err := io.ReadFull(zr, buf); err != nil {
		return nil, fmt.Errorf("entry at %d: decompress: %w", e.offset, err)
	}
	return buf, nil
}

// checkCRC compares the CRC32 of the entry's raw bytes against the index.
func (p *packFile) checkCRC(e *packEntry) error {
	want := e.crc
	crc := crc32.NewIEEE()
	if _, err := io.Copy(crc, io.NewSectionReader(p.f, int64(e.offset), int64(e.span()))); err != nil {
		return fmt.Errorf("entry at %d: read for crc: %w", e.offset, err)
	}
	if got := crc.Sum32(); got != want {
		return fmt.Errorf("entry at %d: crc32 mismatch got %08x want %08x", e.offset, got, want)
	}
	return nil
}
