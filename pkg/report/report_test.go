package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/odvcencio/repodiet/pkg/browse"
	"github.com/odvcencio/repodiet/pkg/extstat"
	"github.com/odvcencio/repodiet/pkg/object"
	"github.com/odvcencio/repodiet/pkg/rank"
	"github.com/odvcencio/repodiet/pkg/record"
	"github.com/odvcencio/repodiet/pkg/search"
	"github.com/odvcencio/repodiet/pkg/sizetree"
	"github.com/odvcencio/repodiet/pkg/store"
)

func oid(n int) object.Hash { return object.Hash(fmt.Sprintf("%040x", n)) }

func testInput() Input {
	records := []record.BlobRecord{
		{Path: "docs/a.txt", ObjectID: oid(1), PackedSize: 100, LogicalSize: 200, CommitID: oid(11), Author: "Ada", Timestamp: 1700000000},
		{Path: "docs/a.txt", ObjectID: oid(2), PackedSize: 300, LogicalSize: 600, CommitID: oid(13), Author: "Bob", Timestamp: 1700000120},
		{Path: "main.go", ObjectID: oid(3), PackedSize: 50, LogicalSize: 90, CommitID: oid(11), Author: "Ada", Timestamp: 1700000000},
	}
	m := record.Membership{"main.go": oid(3)}
	return Input{
		Repository: "demo",
		Head:       oid(15),
		BuiltAt:    time.Unix(1700001000, 0),
		Tree:       sizetree.Build(records, m),
		Blobs:      rank.Top(records, 10),
		Extensions: extstat.Aggregate(records, m),
		Stats:      store.Stats{Records: 3, Paths: 2, ScannedCommits: 5},
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	r := Build(testInput())
	assert.Equal(t, "demo", r.Repository)
	assert.Equal(t, uint64(450), r.Totals.CumulativeBytes)
	assert.Equal(t, uint64(50), r.Totals.CurrentBytes)
	assert.Equal(t, uint64(400), r.Totals.DeletedBytes)
	assert.Equal(t, uint64(890), r.Totals.LogicalBytes)
	assert.Equal(t, int64(5), r.Totals.ScannedCommits)

	require.Len(t, r.Directories, 2)
	assert.Equal(t, "docs", r.Directories[0].Path)
	assert.True(t, r.Directories[0].Directory)

	require.Len(t, r.Deleted, 1)
	assert.Equal(t, "docs/a.txt", r.Deleted[0].Path)
	assert.Equal(t, 2, r.Deleted[0].Versions)

	require.Len(t, r.Largest, 3)
	assert.Equal(t, uint64(300), r.Largest[0].PackedBytes)
	assert.Equal(t, "Bob", r.Largest[0].Author)
	assert.Equal(t, ".txt", r.Extensions[0].Extension)
	assert.Empty(t, r.Conflicts)
}

func TestBuildLimit(t *testing.T) {
	t.Parallel()

	in := testInput()
	in.Limit = 1
	r := Build(in)
	assert.Len(t, r.Directories, 1)
}

func TestEncodeFormats(t *testing.T) {
	t.Parallel()

	r := Build(testInput())

	var js bytes.Buffer
	require.NoError(t, Encode(&js, r, "json"))
	var fromJSON Report
	require.NoError(t, json.Unmarshal(js.Bytes(), &fromJSON))
	assert.Equal(t, r.Totals, fromJSON.Totals)
	assert.Equal(t, r.Largest[0].Path, fromJSON.Largest[0].Path)

	var ym bytes.Buffer
	require.NoError(t, Encode(&ym, r, "YAML"))
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &fromYAML))
	assert.Equal(t, "demo", fromYAML["repository"])

	var tm bytes.Buffer
	require.NoError(t, Encode(&tm, r, "toml"))
	var fromTOML map[string]any
	_, err := toml.Decode(tm.String(), &fromTOML)
	require.NoError(t, err)
	assert.Equal(t, "demo", fromTOML["repository"])
	totals, ok := fromTOML["totals"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(450), totals["cumulative_bytes"])

	err = Encode(&bytes.Buffer{}, r, "xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormatting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "500 B", Size(500))
	assert.Equal(t, "1.0 KiB", Size(1024))
	assert.Equal(t, "unknown", Date(0))
	assert.Equal(t, "2023-11-14", Date(1700000000))
	assert.Equal(t, "25.0%", Percent(1, 4))
	assert.Equal(t, "-", Percent(1, 0))
}

func TestRenderTables(t *testing.T) {
	t.Parallel()

	in := testInput()
	var buf bytes.Buffer

	c := browse.New(in.Tree)
	RenderDirectory(&buf, c, TableOptions{})
	out := buf.String()
	assert.Contains(t, out, "docs/")
	assert.Contains(t, out, "main.go")
	assert.NotContains(t, out, "\x1b[", "color disabled")

	buf.Reset()
	require.True(t, c.NavigateTo("docs/a.txt"))
	RenderDirectory(&buf, c, TableOptions{Color: true})
	assert.Contains(t, buf.String(), "\x1b[31m")
	assert.Contains(t, buf.String(), "deleted")

	buf.Reset()
	RenderBlobs(&buf, in.Blobs, TableOptions{})
	assert.Contains(t, buf.String(), "Total: 3 objects")
	assert.Contains(t, buf.String(), string(oid(2))[:12])

	buf.Reset()
	RenderExtensions(&buf, in.Extensions, TableOptions{})
	assert.Contains(t, buf.String(), ".txt")
	assert.Contains(t, buf.String(), "Go")

	buf.Reset()
	ix := search.FromTree(in.Tree)
	RenderSearch(&buf, "a", ix.Find("a"), TableOptions{})
	assert.Contains(t, buf.String(), "docs/a.txt")

	buf.Reset()
	RenderSummary(&buf, Build(in))
	assert.True(t, strings.Contains(buf.String(), "450 B"), buf.String())
}
