package object

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteLooseRoundTrip(t *testing.T) {
	root := t.TempDir()
	data := []byte("hello world\n")

	h, err := WriteLoose(root, TypeBlob, data)
	if err != nil {
		t.Fatalf("WriteLoose: %v", err)
	}
	if h != HashObject(TypeBlob, data) {
		t.Fatalf("hash = %s, want %s", h, HashObject(TypeBlob, data))
	}
	// git's well-known id for this content
	if h != "3b18e512dba79e4c8300dd08aeb37f8e728b8dad" {
		t.Fatalf("hash = %s, not git-compatible", h)
	}

	path := filepath.Join(root, string(h[:2]), string(h[2:]))
	objType, got, err := readLoose(path)
	if err != nil {
		t.Fatalf("readLoose: %v", err)
	}
	if objType != TypeBlob || !bytes.Equal(got, data) {
		t.Fatalf("readLoose = %s %q", objType, got)
	}
	objType, size, err := readLooseHeader(path)
	if err != nil {
		t.Fatalf("readLooseHeader: %v", err)
	}
	if objType != TypeBlob || size != uint64(len(data)) {
		t.Fatalf("readLooseHeader = %s %d", objType, size)
	}

	again, err := WriteLoose(root, TypeBlob, data)
	if err != nil || again != h {
		t.Fatalf("second WriteLoose = %s, %v", again, err)
	}
}

func TestStoreHasAndLocate(t *testing.T) {
	root := t.TempDir()
	h, err := WriteLoose(root, TypeBlob, []byte("x"))
	if err != nil {
		t.Fatalf("WriteLoose: %v", err)
	}
	s, err := OpenStore(root)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	if !s.Has(h) {
		t.Fatal("Has = false for written object")
	}
	missing := HashObject(TypeBlob, []byte("y"))
	if s.Has(missing) {
		t.Fatal("Has = true for absent object")
	}
	if _, err := s.locate(missing); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("locate(absent) = %v, want ErrObjectNotFound", err)
	}
	if _, err := s.locate("not-a-hash"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("locate(malformed) = %v, want ErrObjectNotFound", err)
	}
}

func TestOpenStoreRejectsMissingDir(t *testing.T) {
	if _, err := OpenStore(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing objects dir")
	}
}

func TestOpenStoreRejectsPackIndexMismatch(t *testing.T) {
	root := t.TempDir()
	writeTestPack(t, root, 1, func(pw *PackWriter) {
		if _, err := pw.WriteObject(TypeBlob, []byte("data")); err != nil {
			t.Fatalf("WriteObject: %v", err)
		}
	})
	packs, _ := filepath.Glob(filepath.Join(root, "pack", "*.pack"))
	raw, err := os.ReadFile(packs[0])
	if err != nil {
		t.Fatalf("read pack: %v", err)
	}
	raw[len(raw)-1] ^= 0xff
	if err := os.WriteFile(packs[0], raw, 0o644); err != nil {
		t.Fatalf("rewrite pack: %v", err)
	}
	if _, err := OpenStore(root); err == nil {
		t.Fatal("expected pack/index checksum mismatch")
	}
}

func TestParseEnvelopeErrors(t *testing.T) {
	for _, raw := range []string{"blob 5", "blob\x00", "bogus 1\x00x", "blob x\x00"} {
		if _, _, _, err := parseEnvelope([]byte(raw)); err == nil {
			t.Fatalf("parseEnvelope(%q) succeeded", raw)
		}
	}
}
