package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MarshalTree encodes entries in Git's binary tree format, sorted the way git
// sorts them (subtrees compare as if their name ended in "/").
func MarshalTree(tr *TreeObj) []byte {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return treeSortKey(sorted[i]) < treeSortKey(sorted[j])
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		raw, _ := hashHexToBytes(e.Hash)
		buf.WriteString(e.Mode)
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(raw)
	}
	return buf.Bytes()
}

func treeSortKey(e TreeEntry) string {
	if e.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// UnmarshalTree parses Git's binary tree format.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp <= 0 {
			return nil, fmt.Errorf("unmarshal tree: malformed mode")
		}
		mode := normalizeTreeMode(string(data[:sp]))
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul <= 0 {
			return nil, fmt.Errorf("unmarshal tree: malformed entry name")
		}
		name := string(data[:nul])
		data = data[nul+1:]
		if len(data) < HashSize {
			return nil, fmt.Errorf("unmarshal tree: entry %q id truncated", name)
		}
		if strings.Contains(name, "/") {
			return nil, fmt.Errorf("unmarshal tree: entry name %q contains a slash", name)
		}
		tr.Entries = append(tr.Entries, TreeEntry{
			Name: name,
			Mode: mode,
			Hash: hashFromBytes(data[:HashSize]),
		})
		data = data[HashSize:]
	}
	return tr, nil
}

// normalizeTreeMode folds legacy modes (e.g. 100664 written by very old git)
// onto the canonical set.
func normalizeTreeMode(mode string) string {
	switch mode {
	case TreeModeDir, "040000":
		return TreeModeDir
	case TreeModeExecutable, TreeModeSymlink, TreeModeGitlink:
		return mode
	default:
		return TreeModeFile
	}
}

// MarshalCommit encodes a commit in Git's text format. Committer is written
// equal to author.
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	ident := fmt.Sprintf("%s <%s> %d +0000", c.Author, c.Email, c.Timestamp)
	fmt.Fprintf(&buf, "author %s\n", ident)
	fmt.Fprintf(&buf, "committer %s\n", ident)
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses the headers of a Git commit. Unknown headers and
// continuation lines (signatures, mergetags) are skipped.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	header, message, _ := bytes.Cut(data, []byte("\n\n"))

	c := &CommitObj{Message: string(message)}
	for _, line := range strings.Split(string(header), "\n") {
		if line == "" || line[0] == ' ' {
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		switch key {
		case "tree":
			h, err := ParseHash(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: tree: %w", err)
			}
			c.TreeHash = h
		case "parent":
			h, err := ParseHash(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: parent: %w", err)
			}
			c.Parents = append(c.Parents, h)
		case "author":
			c.Author, c.Email, c.Timestamp = parseIdent(val)
		}
	}
	if c.TreeHash == "" {
		return nil, fmt.Errorf("unmarshal commit: missing tree header")
	}
	return c, nil
}

// parseIdent splits "Name <email> 1700000000 +0100". Identities written by
// broken tools are kept as far as they parse: without brackets the whole value
// is the name, and an unreadable timestamp is 0.
func parseIdent(val string) (name, email string, ts int64) {
	lt := strings.IndexByte(val, '<')
	gt := strings.LastIndexByte(val, '>')
	if lt < 0 || gt < lt {
		return strings.TrimSpace(val), "", 0
	}
	name = strings.TrimSpace(val[:lt])
	email = val[lt+1 : gt]
	if fields := strings.Fields(val[gt+1:]); len(fields) > 0 {
		if v, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
			ts = v
		}
	}
	return name, email, ts
}
