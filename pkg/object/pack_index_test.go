package object

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func repeatHex(pair string, n int) string {
	return strings.Repeat(pair, n)
}

func TestWritePackIndexRoundTrip(t *testing.T) {
	entries := []PackIndexEntry{
		{Hash: Hash("ff" + repeatHex("00", 19)), Offset: 32, CRC32: 0x33333333},
		{Hash: Hash("01" + repeatHex("00", 19)), Offset: 12, CRC32: 0x11111111},
		{Hash: Hash("10" + repeatHex("00", 19)), Offset: 24, CRC32: 0x22222222},
	}
	packChecksum := Hash(repeatHex("ab", 20))

	var buf bytes.Buffer
	indexSum, err := WritePackIndex(&buf, entries, packChecksum)
	if err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}
	data := buf.Bytes()
	if !bytes.Equal(data[:4], packIndexMagic[:]) {
		t.Fatalf("magic = %x, want %x", data[:4], packIndexMagic)
	}
	if v := binary.BigEndian.Uint32(data[4:8]); v != packIndexVersion {
		t.Fatalf("version = %d, want %d", v, packIndexVersion)
	}

	idx, err := ReadPackIndex(data)
	if err != nil {
		t.Fatalf("ReadPackIndex: %v", err)
	}
	if idx.PackChecksum != packChecksum {
		t.Fatalf("pack checksum = %s, want %s", idx.PackChecksum, packChecksum)
	}
	if idx.IndexChecksum != indexSum {
		t.Fatalf("index checksum = %s, want %s", idx.IndexChecksum, indexSum)
	}
	if idx.Len() != 3 {
		t.Fatalf("Len = %d, want 3", idx.Len())
	}
	got := idx.Entries()
	if got[0].Hash[:2] != "01" || got[1].Hash[:2] != "10" || got[2].Hash[:2] != "ff" {
		t.Fatalf("entries not sorted by hash: %+v", got)
	}
	for _, want := range entries {
		e, ok := idx.Find(want.Hash)
		if !ok {
			t.Fatalf("Find(%s) missing", want.Hash)
		}
		if e != want {
			t.Fatalf("Find(%s) = %+v, want %+v", want.Hash, e, want)
		}
	}
	if _, ok := idx.Find(Hash("02" + repeatHex("00", 19))); ok {
		t.Fatal("Find returned an absent hash")
	}
}

func TestPackIndexLargeOffsets(t *testing.T) {
	entries := []PackIndexEntry{
		{Hash: Hash("aa" + repeatHex("11", 19)), Offset: 1 << 33, CRC32: 1},
		{Hash: Hash("bb" + repeatHex("22", 19)), Offset: 100, CRC32: 2},
	}
	var buf bytes.Buffer
	if _, err := WritePackIndex(&buf, entries, Hash(repeatHex("cd", 20))); err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}
	idx, err := ReadPackIndex(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadPackIndex: %v", err)
	}
	e, ok := idx.Find(entries[0].Hash)
	if !ok || e.Offset != 1<<33 {
		t.Fatalf("large offset entry = %+v,%v", e, ok)
	}
}

func TestReadPackIndexRejectsChecksumMismatch(t *testing.T) {
	entries := []PackIndexEntry{{Hash: Hash(repeatHex("12", 20)), Offset: 12}}
	var buf bytes.Buffer
	if _, err := WritePackIndex(&buf, entries, Hash(repeatHex("00", 20))); err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}
	data := buf.Bytes()
	data[packIndexHeaderSize+packIndexFanoutSize] ^= 0xff
	if _, err := ReadPackIndex(data); err == nil {
		t.Fatal("expected checksum mismatch")
	}
}

func TestWritePackIndexRejectsBadHash(t *testing.T) {
	var buf bytes.Buffer
	_, err := WritePackIndex(&buf, []PackIndexEntry{{Hash: "xyz"}}, Hash(repeatHex("00", 20)))
	if err == nil {
		t.Fatal("expected error for malformed hash")
	}
}
