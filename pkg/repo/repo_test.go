package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/repodiet/pkg/gitfixture"
	"github.com/odvcencio/repodiet/pkg/object"
)

func openFixture(t *testing.T, path string) *Repo {
	t.Helper()
	r, err := Open(path, object.ResolverOptions{Verify: true})
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestOpenFindsRepositoryFromSubdirectory(t *testing.T) {
	fx := gitfixture.New(t)
	fx.Commit(map[string]string{"a.txt": "a"})
	sub := filepath.Join(fx.Dir, "deep", "er")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	r := openFixture(t, sub)
	if r.RootDir != fx.Dir {
		t.Fatalf("RootDir = %s, want %s", r.RootDir, fx.Dir)
	}
	if r.GitDir != fx.GitDir || r.CommonDir != fx.GitDir {
		t.Fatalf("GitDir = %s CommonDir = %s, want %s", r.GitDir, r.CommonDir, fx.GitDir)
	}
}

func TestOpenFollowsGitFile(t *testing.T) {
	fx := gitfixture.New(t)
	head := fx.Commit(map[string]string{"a.txt": "a"})

	worktree := t.TempDir()
	if err := os.WriteFile(filepath.Join(worktree, ".git"), []byte("gitdir: "+fx.GitDir+"\n"), 0o644); err != nil {
		t.Fatalf("write gitfile: %v", err)
	}
	r := openFixture(t, worktree)
	got, err := r.HeadCommit()
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	if got != head {
		t.Fatalf("HeadCommit = %s, want %s", got, head)
	}
}

func TestOpenBareRepository(t *testing.T) {
	fx := gitfixture.New(t)
	head := fx.Commit(map[string]string{"a.txt": "a"})

	r := openFixture(t, fx.GitDir)
	if r.RootDir != "" {
		t.Fatalf("bare RootDir = %q, want empty", r.RootDir)
	}
	got, err := r.HeadCommit()
	if err != nil || got != head {
		t.Fatalf("HeadCommit = %s, %v; want %s", got, err, head)
	}
}

func TestOpenRejectsNonRepository(t *testing.T) {
	_, err := Open(t.TempDir(), object.ResolverOptions{})
	if !errors.Is(err, ErrRepositoryUnavailable) {
		t.Fatalf("Open = %v, want ErrRepositoryUnavailable", err)
	}
	_, err = Open(filepath.Join(t.TempDir(), "missing"), object.ResolverOptions{})
	if !errors.Is(err, ErrRepositoryUnavailable) {
		t.Fatalf("Open(missing) = %v, want ErrRepositoryUnavailable", err)
	}
}

func TestHeadCommitUnbornBranch(t *testing.T) {
	fx := gitfixture.New(t)
	r := openFixture(t, fx.Dir)
	if _, err := r.HeadCommit(); !errors.Is(err, ErrRepositoryUnavailable) {
		t.Fatalf("HeadCommit on unborn branch = %v, want ErrRepositoryUnavailable", err)
	}
}

func TestHeadCommitDetachedAndPackedRefs(t *testing.T) {
	fx := gitfixture.New(t)
	first := fx.Commit(map[string]string{"a.txt": "a"})
	second := fx.Commit(map[string]string{"a.txt": "b"})
	fx.PackRefs()

	r := openFixture(t, fx.Dir)
	got, err := r.HeadCommit()
	if err != nil || got != second {
		t.Fatalf("HeadCommit via packed-refs = %s, %v; want %s", got, err, second)
	}

	fx.Detach(first)
	got, err = r.HeadCommit()
	if err != nil || got != first {
		t.Fatalf("HeadCommit detached = %s, %v; want %s", got, err, first)
	}
	head, err := r.Head()
	if err != nil || head != string(first) {
		t.Fatalf("Head = %q, %v", head, err)
	}
}

func TestResolveRefShortName(t *testing.T) {
	fx := gitfixture.New(t)
	h := fx.Commit(map[string]string{"a.txt": "a"})
	r := openFixture(t, fx.Dir)

	got, err := r.ResolveRef("main")
	if err != nil || got != h {
		t.Fatalf("ResolveRef(main) = %s, %v", got, err)
	}
	if _, err := r.ResolveRef("nope"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("ResolveRef(nope) = %v, want ErrNotExist", err)
	}
}

func TestFlattenTreeLooseAndPacked(t *testing.T) {
	for _, packed := range []bool{false, true} {
		fx := gitfixture.New(t)
		fx.Commit(map[string]string{"README.md": "v1", "src/main.go": "package main"})
		head := fx.Commit(map[string]string{
			"README.md":       "v2",
			"src/main.go":     "package main\n",
			"src/lib/util.go": "package lib",
		})
		if packed {
			fx.Pack()
		}

		r := openFixture(t, fx.Dir)
		files, err := r.HeadTree(head)
		if err != nil {
			t.Fatalf("HeadTree(packed=%v): %v", packed, err)
		}
		want := map[string]object.Hash{
			"README.md":       gitfixture.BlobID("v2"),
			"src/main.go":     gitfixture.BlobID("package main\n"),
			"src/lib/util.go": gitfixture.BlobID("package lib"),
		}
		if len(files) != len(want) {
			t.Fatalf("flattened %d files, want %d: %v", len(files), len(want), files)
		}
		for p, h := range want {
			if files[p] != h {
				t.Fatalf("files[%s] = %s, want %s", p, files[p], h)
			}
		}
	}
}
