package object

import (
	"bytes"
	"testing"
)

func TestOfsDeltaDistanceRoundTrip(t *testing.T) {
	tests := []uint64{
		1, 2, 10, 127, 128, 255, 1024, 65535, 1 << 20, (1 << 31) + 17,
	}
	for _, want := range tests {
		enc := encodeOfsDeltaDistance(want)
		got, n, err := decodeOfsDeltaDistance(enc)
		if err != nil {
			t.Fatalf("decode distance %d: %v", want, err)
		}
		if got != want {
			t.Fatalf("distance round-trip mismatch: got %d want %d", got, want)
		}
		if n != len(enc) {
			t.Fatalf("distance byte count mismatch: got %d want %d", n, len(enc))
		}
	}
}

func TestBuildDeltaAppliesToTarget(t *testing.T) {
	tests := []struct {
		name         string
		base, target []byte
	}{
		{name: "shared-prefix", base: []byte("hello world\n"), target: []byte("hello there world\n")},
		{name: "no-overlap", base: []byte("abc"), target: []byte("xyz")},
		{name: "empty-target", base: []byte("abc"), target: nil},
		{name: "long-copy", base: bytes.Repeat([]byte("a"), 70000), target: append(bytes.Repeat([]byte("a"), 70000), 'b')},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta := buildDelta(tt.base, tt.target)
			got, err := applyDelta(tt.base, delta)
			if err != nil {
				t.Fatalf("applyDelta: %v", err)
			}
			if !bytes.Equal(got, tt.target) {
				t.Fatalf("delta result mismatch: got %d bytes want %d", len(got), len(tt.target))
			}
			baseSize, resultSize, err := deltaSizes(delta)
			if err != nil {
				t.Fatalf("deltaSizes: %v", err)
			}
			if baseSize != uint64(len(tt.base)) || resultSize != uint64(len(tt.target)) {
				t.Fatalf("deltaSizes = (%d,%d), want (%d,%d)", baseSize, resultSize, len(tt.base), len(tt.target))
			}
		})
	}
}

func TestApplyDeltaRejectsBaseSizeMismatch(t *testing.T) {
	delta := buildDelta([]byte("four"), []byte("five5"))
	if _, err := applyDelta([]byte("three"), delta); err == nil {
		t.Fatal("expected base size mismatch error")
	}
}

func TestApplyDeltaRejectsOutOfBoundsCopy(t *testing.T) {
	delta := append(encodeDeltaVarint(4), encodeDeltaVarint(8)...)
	delta = appendDeltaCopy(delta, 2, 8)
	if _, err := applyDelta([]byte("abcd"), delta); err == nil {
		t.Fatal("expected out-of-bounds copy error")
	}
}

func TestApplyDeltaDefaultCopySize(t *testing.T) {
	base := bytes.Repeat([]byte("x"), defaultCopySize)
	delta := append(encodeDeltaVarint(uint64(len(base))), encodeDeltaVarint(uint64(len(base)))...)
	delta = append(delta, deltaCopyFlag)
	got, err := applyDelta(base, delta)
	if err != nil {
		t.Fatalf("applyDelta: %v", err)
	}
	if len(got) != defaultCopySize {
		t.Fatalf("copy with no size bytes produced %d bytes", len(got))
	}
}

func TestApplyDeltaRejectsTruncatedInsert(t *testing.T) {
	delta := append(encodeDeltaVarint(0), encodeDeltaVarint(4)...)
	delta = append(delta, 4, 'a', 'b')
	if _, err := applyDelta(nil, delta); err == nil {
		t.Fatal("expected truncated insert error")
	}
}

func TestApplyDeltaRejectsZeroCommand(t *testing.T) {
	delta := append(encodeDeltaVarint(0), encodeDeltaVarint(1)...)
	delta = append(delta, 0)
	if _, err := applyDelta(nil, delta); err == nil {
		t.Fatal("expected error for command 0")
	}
}
