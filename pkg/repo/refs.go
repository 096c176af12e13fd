package repo

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/repodiet/pkg/object"
)

// maxSymrefDepth bounds chains of symbolic refs.
const maxSymrefDepth = 5

// Head returns the raw HEAD value: a ref name such as "refs/heads/main" when
// HEAD is symbolic, or a commit id when detached.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.GitDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if ref, ok := strings.CutPrefix(content, "ref:"); ok {
		return strings.TrimSpace(ref), nil
	}
	return content, nil
}

// HeadCommit resolves HEAD to a commit id. An unborn branch or an unreadable
// HEAD is reported as ErrRepositoryUnavailable.
func (r *Repo) HeadCommit() (object.Hash, error) {
	h, err := r.ResolveRef("HEAD")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	if _, err := r.ReadCommit(h); err != nil {
		return "", fmt.Errorf("%w: HEAD %s: %v", ErrRepositoryUnavailable, h, err)
	}
	return h, nil
}

// ResolveRef resolves HEAD, a full ref name ("refs/heads/main"), or a short
// branch name to an object id. Loose ref files are consulted before
// packed-refs.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	return r.resolveRef(name, 0)
}

func (r *Repo) resolveRef(name string, depth int) (object.Hash, error) {
	if depth > maxSymrefDepth {
		return "", fmt.Errorf("resolve ref %q: symbolic ref chain too deep", name)
	}
	if name == "HEAD" {
		head, err := r.Head()
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(head, "refs/") {
			return r.resolveRef(head, depth+1)
		}
		return parseRefHash(name, head)
	}

	if !strings.HasPrefix(name, "refs/") {
		name = "refs/heads/" + name
	}
	data, err := os.ReadFile(filepath.Join(r.CommonDir, filepath.FromSlash(name)))
	if err == nil {
		content := strings.TrimSpace(string(data))
		if target, ok := strings.CutPrefix(content, "ref:"); ok {
			return r.resolveRef(strings.TrimSpace(target), depth+1)
		}
		return parseRefHash(name, content)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}

	packed, err := r.PackedRefs()
	if err != nil {
		return "", err
	}
	if h, ok := packed[name]; ok {
		return h, nil
	}
	return "", fmt.Errorf("resolve ref %q: %w", name, os.ErrNotExist)
}

// PackedRefs parses the packed-refs file. Peeled lines ("^<id>") are skipped.
func (r *Repo) PackedRefs() (map[string]object.Hash, error) {
	refs := make(map[string]object.Hash)
	f, err := os.Open(filepath.Join(r.CommonDir, "packed-refs"))
	if errors.Is(err, os.ErrNotExist) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("packed refs: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		id, name, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		h, err := object.ParseHash(id)
		if err != nil {
			return nil, fmt.Errorf("packed refs %q: %w", name, err)
		}
		refs[name] = h
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("packed refs: %w", err)
	}
	return refs, nil
}

func parseRefHash(name, value string) (object.Hash, error) {
	h, err := object.ParseHash(value)
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	return h, nil
}
