package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/repodiet/pkg/gitfixture"
)

func fixtureRepo(t *testing.T) *gitfixture.Repo {
	t.Helper()
	r := gitfixture.New(t)
	r.Commit(map[string]string{
		"docs/a.txt":  strings.Repeat("a", 300),
		"src/main.go": "package main\n",
	})
	r.Commit(map[string]string{
		"src/main.go": "package main\n\nfunc main() {}\n",
	})
	return r
}

// run executes the CLI against dir with a private database and config.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "repodiet.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\n"), 0o644))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{
		"-C", dir,
		"--config", cfgPath,
		"--db", filepath.Join(tmp, "scan.db"),
		"--no-color",
	}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestReportJSON(t *testing.T) {
	r := fixtureRepo(t)

	out, err := run(t, r.Dir, "report", "--format", "json")
	require.NoError(t, err)

	var doc struct {
		Head   string `json:"head"`
		Totals struct {
			DeletedBytes uint64 `json:"deleted_bytes"`
		} `json:"totals"`
		Deleted []struct {
			Path string `json:"path"`
		} `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, string(r.Head()), doc.Head)
	assert.NotZero(t, doc.Totals.DeletedBytes)
	require.NotEmpty(t, doc.Deleted)
}

func TestReportToFile(t *testing.T) {
	r := fixtureRepo(t)
	dest := filepath.Join(t.TempDir(), "report.yaml")

	out, err := run(t, r.Dir, "report", "--format", "yaml", "--output", dest)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "deleted_bytes:")
}

func TestReportUnknownFormat(t *testing.T) {
	r := fixtureRepo(t)
	_, err := run(t, r.Dir, "report", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, exitError, exitCode(err))
}

func TestSearchCommand(t *testing.T) {
	r := fixtureRepo(t)
	out, err := run(t, r.Dir, "search", "A.TXT")
	require.NoError(t, err)
	assert.Contains(t, out, "docs/a.txt")
	assert.NotContains(t, out, "src/main.go")
}

func TestTreeCommand(t *testing.T) {
	r := fixtureRepo(t)

	out, err := run(t, r.Dir, "tree")
	require.NoError(t, err)
	assert.Contains(t, out, "docs")
	assert.Contains(t, out, "src")

	out, err = run(t, r.Dir, "tree", "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "a.txt")

	_, err = run(t, r.Dir, "tree", "nope")
	require.Error(t, err)
}

func TestScanCommand(t *testing.T) {
	r := fixtureRepo(t)
	out, err := run(t, r.Dir, "scan", "--quiet")
	require.NoError(t, err)
	assert.Contains(t, out, "scanned 2 commit(s)")
}

func TestUnavailableRepositoryExitCode(t *testing.T) {
	_, err := run(t, t.TempDir(), "scan")
	require.Error(t, err)
	assert.Equal(t, exitUnavailable, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitError, exitCode(os.ErrNotExist))
}
