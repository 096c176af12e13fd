package extstat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/repodiet/pkg/object"
	"github.com/odvcencio/repodiet/pkg/record"
)

func oid(n int) object.Hash { return object.Hash(fmt.Sprintf("%040x", n)) }

func TestExtension(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"main.go":               "go",
		"dir.d/README":          "",
		"archive.TAR.GZ":        "gz",
		".gitignore":            "gitignore",
		"trailing.":             "",
		"x/y/photo.JPEG":        "jpeg",
		"weird.abcdefghijklmno": "",
		"ten.abcdefghij":        "abcdefghij",
	}
	for in, want := range cases {
		assert.Equal(t, want, Extension(in), in)
	}
}

func TestLabel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ".go", Stat{Extension: "go"}.Label())
	assert.Equal(t, "(no ext)", Stat{}.Label())
}

func TestAggregateCountsPathsAndVersions(t *testing.T) {
	t.Parallel()

	records := []record.BlobRecord{
		{Path: "a.go", ObjectID: oid(1), PackedSize: 10},
		{Path: "a.go", ObjectID: oid(2), PackedSize: 20},
		{Path: "a.go", ObjectID: oid(3), PackedSize: 30},
		{Path: "a.go", ObjectID: oid(1), PackedSize: 10, CommitID: oid(99)},
		{Path: "lib/b.GO", ObjectID: oid(4), PackedSize: 5},
		{Path: "Makefile", ObjectID: oid(5), PackedSize: 100},
		{Path: "gone.bin", ObjectID: oid(6), PackedSize: 7},
	}
	m := record.Membership{"a.go": oid(3), "lib/b.GO": oid(4), "Makefile": oid(5)}

	stats := Aggregate(records, m)
	require.Len(t, stats, 3)

	assert.Equal(t, "", stats[0].Extension)
	assert.Equal(t, 1, stats[0].FileCount)
	assert.Equal(t, uint64(100), stats[0].CurrentSize)

	goStat := stats[1]
	assert.Equal(t, "go", goStat.Extension)
	assert.Equal(t, "Go", goStat.Language)
	assert.Equal(t, 2, goStat.FileCount)
	assert.Equal(t, uint64(65), goStat.CumulativeSize)
	assert.Equal(t, uint64(35), goStat.CurrentSize)

	assert.Equal(t, "bin", stats[2].Extension)
	assert.Zero(t, stats[2].CurrentSize)
}

func TestAggregateTiesOrderByExtension(t *testing.T) {
	t.Parallel()

	stats := Aggregate([]record.BlobRecord{
		{Path: "z.txt", ObjectID: oid(1), PackedSize: 4},
		{Path: "a.css", ObjectID: oid(2), PackedSize: 4},
	}, nil)
	require.Len(t, stats, 2)
	assert.Equal(t, "css", stats[0].Extension)
	assert.Equal(t, "txt", stats[1].Extension)
}
