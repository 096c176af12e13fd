package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/repodiet/pkg/object"
)

// Open finds the repository containing path, walking upward until a .git
// directory, a .git file with a "gitdir:" pointer, or a bare repository is
// found.
func Open(path string, opts object.ResolverOptions) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: abs path: %v", ErrRepositoryUnavailable, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}

	cur := abs
	for {
		r, ok, err := detect(cur)
		if err != nil {
			return nil, err
		}
		if ok {
			objects, err := object.OpenStore(filepath.Join(r.CommonDir, "objects"))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
			}
			r.Objects = objects
			r.Resolver = object.NewResolver(objects, opts)
			return r, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("%w: not a git repository (or any parent up to /): %s", ErrRepositoryUnavailable, abs)
		}
		cur = parent
	}
}

// detect checks whether dir is a worktree root or a bare git directory.
func detect(dir string) (*Repo, bool, error) {
	dotGit := filepath.Join(dir, ".git")
	info, err := os.Stat(dotGit)
	switch {
	case err == nil && info.IsDir():
		return &Repo{RootDir: dir, GitDir: dotGit, CommonDir: commonDir(dotGit)}, true, nil
	case err == nil:
		gitDir, err := readGitFile(dotGit)
		if err != nil {
			return nil, false, err
		}
		return &Repo{RootDir: dir, GitDir: gitDir, CommonDir: commonDir(gitDir)}, true, nil
	}

	if isGitDir(dir) {
		return &Repo{GitDir: dir, CommonDir: commonDir(dir)}, true, nil
	}
	return nil, false, nil
}

// readGitFile follows a "gitdir: <path>" file as written for worktrees and
// submodules.
func readGitFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrRepositoryUnavailable, path, err)
	}
	line := strings.TrimSpace(string(data))
	target, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return "", fmt.Errorf("%w: %s is not a gitdir file", ErrRepositoryUnavailable, path)
	}
	target = strings.TrimSpace(target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	if !isGitDir(target) {
		return "", fmt.Errorf("%w: gitdir %s is not a git directory", ErrRepositoryUnavailable, target)
	}
	return filepath.Clean(target), nil
}

// commonDir returns the directory holding objects and refs. Linked worktrees
// point at it through a "commondir" file.
func commonDir(gitDir string) string {
	data, err := os.ReadFile(filepath.Join(gitDir, "commondir"))
	if err != nil {
		return gitDir
	}
	dir := strings.TrimSpace(string(data))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(gitDir, dir)
	}
	return filepath.Clean(dir)
}

func isGitDir(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, "HEAD")); err != nil {
		return false
	}
	common := commonDir(dir)
	for _, sub := range []string{"objects", "refs"} {
		info, err := os.Stat(filepath.Join(common, sub))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}
