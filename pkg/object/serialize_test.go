package object

import "testing"

func TestTreeRoundTrip(t *testing.T) {
	blob := HashObject(TypeBlob, []byte("x"))
	sub := HashObject(TypeTree, nil)
	tr := &TreeObj{Entries: []TreeEntry{
		{Name: "z.txt", Mode: TreeModeFile, Hash: blob},
		{Name: "a", Mode: TreeModeDir, Hash: sub},
		{Name: "a.txt", Mode: TreeModeExecutable, Hash: blob},
		{Name: "link", Mode: TreeModeSymlink, Hash: blob},
	}}

	got, err := UnmarshalTree(MarshalTree(tr))
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	names := []string{"a.txt", "a", "link", "z.txt"}
	if len(got.Entries) != len(names) {
		t.Fatalf("entries = %d, want %d", len(got.Entries), len(names))
	}
	for i, want := range names {
		if got.Entries[i].Name != want {
			t.Fatalf("entry %d = %q, want %q (git order)", i, got.Entries[i].Name, want)
		}
	}
	if !got.Entries[1].IsDir() || got.Entries[1].Hash != sub {
		t.Fatalf("subtree entry = %+v", got.Entries[1])
	}
	if !got.Entries[2].IsBlob() {
		t.Fatal("symlink should count as a blob")
	}
}

func TestUnmarshalTreeRejectsTruncatedID(t *testing.T) {
	if _, err := UnmarshalTree([]byte("100644 a\x00\x01\x02")); err == nil {
		t.Fatal("expected truncated id error")
	}
}

func TestGitlinkIsNotBlob(t *testing.T) {
	e := TreeEntry{Name: "vendor", Mode: TreeModeGitlink}
	if e.IsBlob() || e.IsDir() {
		t.Fatalf("gitlink classified as blob=%v dir=%v", e.IsBlob(), e.IsDir())
	}
}

func TestCommitRoundTrip(t *testing.T) {
	c := &CommitObj{
		TreeHash:  HashObject(TypeTree, nil),
		Parents:   []Hash{HashObject(TypeBlob, []byte("p1")), HashObject(TypeBlob, []byte("p2"))},
		Author:    "Ada Lovelace",
		Email:     "ada@example.com",
		Timestamp: 1700000000,
		Message:   "add engine\n",
	}
	got, err := UnmarshalCommit(MarshalCommit(c))
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if got.TreeHash != c.TreeHash || len(got.Parents) != 2 || got.Parents[1] != c.Parents[1] {
		t.Fatalf("commit graph fields mismatch: %+v", got)
	}
	if got.Author != c.Author || got.Email != c.Email || got.Timestamp != c.Timestamp {
		t.Fatalf("author = %q <%s> %d", got.Author, got.Email, got.Timestamp)
	}
	if got.Message != c.Message {
		t.Fatalf("message = %q", got.Message)
	}
}

func TestUnmarshalCommitSkipsSignature(t *testing.T) {
	tree := HashObject(TypeTree, nil)
	raw := "tree " + string(tree) + "\n" +
		"author A U Thor <a@example.com> 1234567890 -0700\n" +
		"committer A U Thor <a@example.com> 1234567890 -0700\n" +
		"gpgsig -----BEGIN PGP SIGNATURE-----\n" +
		" iQEzBAABCAAdFiEE\n" +
		" -----END PGP SIGNATURE-----\n" +
		"\n" +
		"signed\n"
	c, err := UnmarshalCommit([]byte(raw))
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if c.Author != "A U Thor" || c.Timestamp != 1234567890 {
		t.Fatalf("author = %q %d", c.Author, c.Timestamp)
	}
}

func TestUnmarshalCommitRequiresTree(t *testing.T) {
	if _, err := UnmarshalCommit([]byte("author x <y> 1 +0000\n\nmsg")); err == nil {
		t.Fatal("expected missing tree error")
	}
}

func TestUnmarshalCommitToleratesBadAuthor(t *testing.T) {
	tree := HashObject(TypeTree, nil)
	parent := HashObject(TypeCommit, []byte("p"))
	for _, tc := range []struct {
		line  string
		name  string
		email string
		ts    int64
	}{
		{"author nobody", "nobody", "", 0},
		{"author Ada <ada@example.com> yesterday +0000", "Ada", "ada@example.com", 0},
		{"author Ada <ada@example.com> 99999999999999999999 +0000", "Ada", "ada@example.com", 0},
		{"author Ada >ada@example.com< 5 +0000", "Ada >ada@example.com< 5 +0000", "", 0},
	} {
		raw := "tree " + string(tree) + "\nparent " + string(parent) + "\n" + tc.line + "\n\nmsg"
		c, err := UnmarshalCommit([]byte(raw))
		if err != nil {
			t.Fatalf("%q: UnmarshalCommit: %v", tc.line, err)
		}
		if c.Author != tc.name || c.Email != tc.email || c.Timestamp != tc.ts {
			t.Fatalf("%q: author = %q <%s> %d", tc.line, c.Author, c.Email, c.Timestamp)
		}
		if c.TreeHash != tree || len(c.Parents) != 1 || c.Parents[0] != parent {
			t.Fatalf("%q: graph fields = %+v", tc.line, c)
		}
	}
}

func TestUnmarshalCommitRejectsBadParent(t *testing.T) {
	tree := HashObject(TypeTree, nil)
	if _, err := UnmarshalCommit([]byte("tree " + string(tree) + "\nparent nothex\n\nmsg")); err == nil {
		t.Fatal("expected bad parent error")
	}
}
