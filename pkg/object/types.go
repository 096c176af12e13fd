package object

// Hash is a 40-character lowercase hex-encoded SHA-1 object id.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTag    ObjectType = "tag"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

const (
	// Tree mode constants compatible with Git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
	TreeModeSymlink    = "120000"
	TreeModeGitlink    = "160000"
)

// Sizes is the pair of sizes reported for one object.
//
// Logical is the fully inflated content length. Packed is the number of bytes
// the object's own storage entry occupies on disk: the pack entry span for
// packed objects (delta bytes only for deltified entries) or the file size for
// loose objects.
type Sizes struct {
	Logical uint64
	Packed  uint64
}

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Name string
	Mode string
	Hash Hash
}

// IsDir reports whether the entry points at a subtree.
func (e TreeEntry) IsDir() bool { return e.Mode == TreeModeDir }

// IsBlob reports whether the entry points at file content. Symlinks are blobs;
// submodule links are not.
func (e TreeEntry) IsBlob() bool {
	return e.Mode != TreeModeDir && e.Mode != TreeModeGitlink
}

// TreeObj is an ordered list of entries.
type TreeObj struct {
	Entries []TreeEntry
}

// CommitObj is the subset of a commit the size accounting needs.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    string
	Email     string
	Timestamp int64
	Message   string
}
