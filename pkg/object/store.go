package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// maxLooseHeader bounds the "type size\0" envelope prefix of a loose object.
const maxLooseHeader = 32

// Store reads a Git objects directory: loose objects under a 2-character
// fan-out layout (objects/ab/cdef...) and every pack in objects/pack.
type Store struct {
	root  string
	packs []*packFile
}

// location says where an object's entry lives. Exactly one of pack or loose
// is set.
type location struct {
	pack   *packFile
	offset uint64
	loose  string
}

// OpenStore opens the objects directory at root and loads all pack indexes.
func OpenStore(root string) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open object store: %s is not a directory", root)
	}
	s := &Store{root: root}
	if err := s.loadPacks(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the open pack files.
func (s *Store) Close() error {
	var errs []error
	for _, p := range s.packs {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.packs = nil
	return errors.Join(errs...)
}

// Root returns the objects directory.
func (s *Store) Root() string { return s.root }

// PackCount returns the number of loaded packs.
func (s *Store) PackCount() int { return len(s.packs) }

// objectPath returns the loose-object path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	_, err := s.locate(h)
	return err == nil
}

// locate finds an object's entry. Packs are searched before loose files, the
// way git itself prefers packed copies.
func (s *Store) locate(h Hash) (location, error) {
	if _, err := hashHexToBytes(h); err != nil {
		return location{}, &ObjectError{ID: h, Op: "locate", Err: fmt.Errorf("%w: %v", ErrObjectNotFound, err)}
	}
	for _, p := range s.packs {
		if e, ok := p.idx.Find(h); ok {
			return location{pack: p, offset: e.Offset}, nil
		}
	}
	path := s.objectPath(h)
	if _, err := os.Stat(path); err == nil {
		return location{loose: path}, nil
	}
	return location{}, notFound("locate", h)
}

// readLooseHeader inflates only the envelope of a loose object.
func readLooseHeader(path string) (ObjectType, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return "", 0, fmt.Errorf("zlib reader: %w", err)
	}
	defer zr.Close()

	buf := make([]byte, maxLooseHeader)
	n, err := io.ReadFull(zr, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", 0, fmt.Errorf("decompress: %w", err)
	}
	objType, size, _, err := parseEnvelope(buf[:n])
	return objType, size, err
}

// readLoose inflates a loose object and checks its declared length.
func readLoose(path string) (ObjectType, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return "", nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return "", nil, fmt.Errorf("decompress: %w", err)
	}
	objType, size, headerLen, err := parseEnvelope(raw)
	if err != nil {
		return "", nil, err
	}
	content := raw[headerLen:]
	if uint64(len(content)) != size {
		return "", nil, fmt.Errorf("length mismatch (header=%d, actual=%d)", size, len(content))
	}
	return objType, content, nil
}

// parseEnvelope parses "type len\0" and returns the header length including
// the NUL.
func parseEnvelope(raw []byte) (ObjectType, uint64, int, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", 0, 0, fmt.Errorf("invalid format (no NUL)")
	}
	header := string(raw[:nulIdx])
	kind, sizeText, ok := strings.Cut(header, " ")
	if !ok {
		return "", 0, 0, fmt.Errorf("invalid header %q", header)
	}
	objType := ObjectType(kind)
	if _, err := PackTypeOf(objType); err != nil {
		return "", 0, 0, fmt.Errorf("invalid header %q: %w", header, err)
	}
	size, err := strconv.ParseUint(sizeText, 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid length %q: %w", sizeText, err)
	}
	return objType, size, nulIdx + 1, nil
}

// WriteLoose stores an object as a zlib-compressed loose file under root and
// returns its id. Writes are atomic: data goes to a temp file that is renamed
// into place.
func WriteLoose(root string, objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)
	dest := filepath.Join(root, string(h[:2]), string(h[2:]))
	if _, err := os.Stat(dest); err == nil {
		return h, nil
	}

	envelope := append([]byte(fmt.Sprintf("%s %d\x00", objType, len(data))), data...)
	compressed, err := deflate(envelope)
	if err != nil {
		return "", fmt.Errorf("object write compress: %w", err)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}
	return h, nil
}
