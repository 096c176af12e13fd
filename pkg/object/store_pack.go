package object

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// loadPacks opens every pack under root/pack that has an index next to it.
// A pack without an index is ignored, as git does while one is being
// written.
func (s *Store) loadPacks() error {
	// Glob only fails on a malformed pattern; results are sorted.
	idxPaths, _ := filepath.Glob(filepath.Join(s.root, "pack", "*.idx"))
	for _, idxPath := range idxPaths {
		name := filepath.Base(idxPath)
		data, err := os.ReadFile(idxPath)
		if err != nil {
			return fmt.Errorf("read pack index %s: %w", name, err)
		}
		idx, err := ReadPackIndex(data)
		if err != nil {
			return fmt.Errorf("pack index %s: %w", name, err)
		}
		p, err := openPackFile(strings.TrimSuffix(idxPath, ".idx")+".pack", idx)
		if err != nil {
			return err
		}
		s.packs = append(s.packs, p)
	}
	return nil
}

// WritePack stores a finished pack and an index for entries in root/pack as
// pack-<checksum>.{pack,idx} and returns the pack path.
func WritePack(root string, packData []byte, entries []PackIndexEntry, checksum Hash) (string, error) {
	dir := filepath.Join(root, "pack")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("write pack: %w", err)
	}
	stem := filepath.Join(dir, "pack-"+string(checksum))
	if err := os.WriteFile(stem+".pack", packData, 0o644); err != nil {
		return "", fmt.Errorf("write pack: %w", err)
	}
	var idx strings.Builder
	if _, err := WritePackIndex(&idx, entries, checksum); err != nil {
		return "", err
	}
	if err := os.WriteFile(stem+".idx", []byte(idx.String()), 0o644); err != nil {
		return "", fmt.Errorf("write pack index: %w", err)
	}
	return stem + ".pack", nil
}
