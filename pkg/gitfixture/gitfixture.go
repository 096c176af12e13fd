// Package gitfixture writes small Git repositories directly in Git's on-disk
// format so tests can exercise history scanning without a git binary.
package gitfixture

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/odvcencio/repodiet/pkg/object"
)

const (
	defaultBranch = "main"
	epoch         = int64(1700000000)
)

// Repo is a fixture repository rooted at Dir with its git directory at
// Dir/.git.
type Repo struct {
	t       testing.TB
	Dir     string
	GitDir  string
	objects string
	clock   int64

	// order and kinds remember every loose object written, for Pack.
	order []object.Hash
	kinds map[object.Hash]object.ObjectType
	data  map[object.Hash][]byte
	// prev maps a blob to the previous version at the same path.
	prev map[object.Hash]object.Hash
	last map[string]object.Hash
}

// CommitOption adjusts one commit.
type CommitOption func(*object.CommitObj)

// WithAuthor sets the commit author name.
func WithAuthor(name string) CommitOption {
	return func(c *object.CommitObj) { c.Author = name }
}

// WithTime sets the commit author timestamp.
func WithTime(ts int64) CommitOption {
	return func(c *object.CommitObj) { c.Timestamp = ts }
}

// WithParents overrides the parent list; by default a commit's only parent is
// the current branch head.
func WithParents(parents ...object.Hash) CommitOption {
	return func(c *object.CommitObj) { c.Parents = parents }
}

// New creates an empty repository with HEAD on refs/heads/main.
func New(t testing.TB) *Repo {
	t.Helper()
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	for _, d := range []string{"objects", filepath.Join("refs", "heads"), filepath.Join("refs", "tags")} {
		if err := os.MkdirAll(filepath.Join(gitDir, d), 0o755); err != nil {
			t.Fatalf("gitfixture mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/"+defaultBranch+"\n"), 0o644); err != nil {
		t.Fatalf("gitfixture HEAD: %v", err)
	}
	return &Repo{
		t:       t,
		Dir:     dir,
		GitDir:  gitDir,
		objects: filepath.Join(gitDir, "objects"),
		clock:   epoch,
		kinds:   make(map[object.Hash]object.ObjectType),
		data:    make(map[object.Hash][]byte),
		prev:    make(map[object.Hash]object.Hash),
		last:    make(map[string]object.Hash),
	}
}

// Commit records a snapshot: files maps every path present in the commit to
// its content; paths absent from files are deleted. The branch head advances
// to the new commit, which is returned.
func (r *Repo) Commit(files map[string]string, opts ...CommitOption) object.Hash {
	r.t.Helper()
	r.clock += 60
	c := &object.CommitObj{
		TreeHash:  r.writeTree(files),
		Author:    "Test Author",
		Email:     "author@example.com",
		Timestamp: r.clock,
		Message:   "commit\n",
	}
	if head, ok := r.branchHead(); ok {
		c.Parents = []object.Hash{head}
	}
	for _, opt := range opts {
		opt(c)
	}
	h := r.write(object.TypeCommit, object.MarshalCommit(c))
	r.SetBranch(defaultBranch, h)
	return h
}

// Head returns the current branch head.
func (r *Repo) Head() object.Hash {
	r.t.Helper()
	h, ok := r.branchHead()
	if !ok {
		r.t.Fatalf("gitfixture: branch %s is unborn", defaultBranch)
	}
	return h
}

// SetBranch points refs/heads/<name> at h.
func (r *Repo) SetBranch(name string, h object.Hash) {
	r.t.Helper()
	path := filepath.Join(r.GitDir, "refs", "heads", name)
	if err := os.WriteFile(path, []byte(string(h)+"\n"), 0o644); err != nil {
		r.t.Fatalf("gitfixture set branch: %v", err)
	}
}

// Detach writes h directly into HEAD.
func (r *Repo) Detach(h object.Hash) {
	r.t.Helper()
	if err := os.WriteFile(filepath.Join(r.GitDir, "HEAD"), []byte(string(h)+"\n"), 0o644); err != nil {
		r.t.Fatalf("gitfixture detach: %v", err)
	}
}

// PackRefs moves every branch ref into packed-refs.
func (r *Repo) PackRefs() {
	r.t.Helper()
	dir := filepath.Join(r.GitDir, "refs", "heads")
	entries, err := os.ReadDir(dir)
	if err != nil {
		r.t.Fatalf("gitfixture pack refs: %v", err)
	}
	var buf bytes.Buffer
	buf.WriteString("# pack-refs with: peeled fully-peeled sorted\n")
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			r.t.Fatalf("gitfixture pack refs: %v", err)
		}
		buf.WriteString(strings.TrimSpace(string(data)) + " refs/heads/" + e.Name() + "\n")
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			r.t.Fatalf("gitfixture pack refs: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(r.GitDir, "packed-refs"), buf.Bytes(), 0o644); err != nil {
		r.t.Fatalf("gitfixture pack refs: %v", err)
	}
}

// BlobID returns the id content would have as a blob.
func BlobID(content string) object.Hash {
	return object.HashObject(object.TypeBlob, []byte(content))
}

// RemoveObject deletes the loose copy of h, simulating a damaged repository.
func (r *Repo) RemoveObject(h object.Hash) {
	r.t.Helper()
	if err := os.Remove(filepath.Join(r.objects, string(h[:2]), string(h[2:]))); err != nil {
		r.t.Fatalf("gitfixture remove object: %v", err)
	}
}

// Pack moves every loose object written so far into one pack. A blob whose
// path had an earlier version in the pack is stored as an OFS_DELTA against
// that version, so delta chains form along each path's history.
func (r *Repo) Pack() string {
	r.t.Helper()
	var buf bytes.Buffer
	pw, err := object.NewPackWriter(&buf, uint32(len(r.order)))
	if err != nil {
		r.t.Fatalf("gitfixture pack: %v", err)
	}
	written := make(map[object.Hash]object.PackIndexEntry, len(r.order))
	for _, h := range r.order {
		var (
			entry object.PackIndexEntry
			err   error
		)
		base, hasBase := written[r.prev[h]]
		if p := r.prev[h]; p != "" && hasBase {
			entry, err = pw.WriteOfsDelta(base, r.data[p], r.kinds[h], r.data[h])
		} else {
			entry, err = pw.WriteObject(r.kinds[h], r.data[h])
		}
		if err != nil {
			r.t.Fatalf("gitfixture pack %s: %v", h, err)
		}
		written[h] = entry
	}
	sum, err := pw.Finish()
	if err != nil {
		r.t.Fatalf("gitfixture pack finish: %v", err)
	}
	path, err := object.WritePack(r.objects, buf.Bytes(), pw.Entries(), sum)
	if err != nil {
		r.t.Fatalf("gitfixture write pack: %v", err)
	}
	for _, h := range r.order {
		_ = os.Remove(filepath.Join(r.objects, string(h[:2]), string(h[2:])))
	}
	r.order = nil
	return path
}

func (r *Repo) branchHead() (object.Hash, bool) {
	data, err := os.ReadFile(filepath.Join(r.GitDir, "refs", "heads", defaultBranch))
	if err != nil {
		return "", false
	}
	return object.Hash(strings.TrimSpace(string(data))), true
}

func (r *Repo) write(kind object.ObjectType, data []byte) object.Hash {
	r.t.Helper()
	h, err := object.WriteLoose(r.objects, kind, data)
	if err != nil {
		r.t.Fatalf("gitfixture write %s: %v", kind, err)
	}
	if _, seen := r.kinds[h]; !seen {
		r.order = append(r.order, h)
		r.kinds[h] = kind
		r.data[h] = data
	}
	return h
}

// writeTree builds nested trees for files and returns the root tree id.
func (r *Repo) writeTree(files map[string]string) object.Hash {
	return r.writeDir("", files)
}

func (r *Repo) writeDir(prefix string, files map[string]string) object.Hash {
	children := make(map[string]map[string]string)
	var entries []object.TreeEntry

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		name, rest, nested := strings.Cut(p, "/")
		if nested {
			if children[name] == nil {
				children[name] = make(map[string]string)
			}
			children[name][rest] = files[p]
			continue
		}
		full := joinPath(prefix, name)
		h := r.write(object.TypeBlob, []byte(files[p]))
		if last, ok := r.last[full]; ok && last != h {
			if _, linked := r.prev[h]; !linked {
				r.prev[h] = last
			}
		}
		r.last[full] = h
		entries = append(entries, object.TreeEntry{Name: name, Mode: object.TreeModeFile, Hash: h})
	}
	for name, sub := range children {
		entries = append(entries, object.TreeEntry{
			Name: name,
			Mode: object.TreeModeDir,
			Hash: r.writeDir(joinPath(prefix, name), sub),
		})
	}
	return r.write(object.TypeTree, object.MarshalTree(&object.TreeObj{Entries: entries}))
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
