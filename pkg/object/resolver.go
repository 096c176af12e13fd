package object

import (
	"os"
	"sync"
)

// deltaSizePrefix is enough inflated delta bytes to hold both size varints.
const deltaSizePrefix = 20

// ResolverOptions tunes how much checking a Resolver does per object.
type ResolverOptions struct {
	// Verify checks every touched pack entry against its index CRC32 and fully
	// inflates delta payloads and loose objects instead of reading headers.
	Verify bool
	// VerifyContent re-hashes content returned by ReadObject.
	VerifyContent bool
	// BaseCacheSize bounds the bytes of reconstructed delta bases kept in
	// memory. Zero selects DefaultBaseCacheSize.
	BaseCacheSize int64
}

// Resolver reports object sizes and reconstructs object content from a Store.
// It is safe for concurrent use.
type Resolver struct {
	store *Store
	opts  ResolverOptions
	bases *baseCache

	mu sync.Mutex
	// sizes memoizes Resolve; the same blob is usually touched at many paths.
	sizes map[Hash]Sizes
	// chains holds delta links already walked down to a whole object.
	chains map[baseKey]struct{}
}

// NewResolver wraps store.
func NewResolver(store *Store, opts ResolverOptions) *Resolver {
	return &Resolver{
		store:  store,
		opts:   opts,
		bases:  newBaseCache(opts.BaseCacheSize),
		sizes:  make(map[Hash]Sizes),
		chains: make(map[baseKey]struct{}),
	}
}

// Resolve returns the logical and packed sizes of id. It fails with
// ErrObjectNotFound when no storage holds id and ErrCorruptObject when the
// entry or its delta chain cannot be decoded.
func (r *Resolver) Resolve(id Hash) (Sizes, error) {
	r.mu.Lock()
	if s, ok := r.sizes[id]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	loc, err := r.store.locate(id)
	if err != nil {
		return Sizes{}, err
	}
	var sizes Sizes
	if loc.pack == nil {
		sizes, err = r.resolveLoose(id, loc.loose)
	} else {
		sizes, err = r.resolvePacked(id, loc.pack, loc.offset)
	}
	if err != nil {
		return Sizes{}, err
	}

	r.mu.Lock()
	r.sizes[id] = sizes
	r.mu.Unlock()
	return sizes, nil
}

func (r *Resolver) resolveLoose(id Hash, path string) (Sizes, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Sizes{}, &ObjectError{ID: id, Op: "resolve", Err: err}
	}
	var size uint64
	if r.opts.Verify {
		_, data, err := readLoose(path)
		if err != nil {
			return Sizes{}, corrupt("resolve", id, "loose: %v", err)
		}
		size = uint64(len(data))
	} else {
		_, size, err = readLooseHeader(path)
		if err != nil {
			return Sizes{}, corrupt("resolve", id, "loose: %v", err)
		}
	}
	return Sizes{Logical: size, Packed: uint64(info.Size())}, nil
}

func (r *Resolver) resolvePacked(id Hash, p *packFile, offset uint64) (Sizes, error) {
	e, err := r.entry(p, offset)
	if err != nil {
		return Sizes{}, corrupt("resolve", id, "%v", err)
	}
	sizes := Sizes{Logical: e.size, Packed: e.span()}
	if !e.typ.IsDelta() {
		if r.opts.Verify {
			if _, err := p.inflate(e); err != nil {
				return Sizes{}, corrupt("resolve", id, "%v", err)
			}
		}
		return sizes, nil
	}

	base, result, err := r.deltaHeader(p, e)
	if err != nil {
		return Sizes{}, corrupt("resolve", id, "%v", err)
	}
	sizes.Logical = result
	if err := r.walkChain(id, p, e, base); err != nil {
		return Sizes{}, err
	}
	return sizes, nil
}

// walkChain follows delta bases from e down to a whole object, checking that
// each link's result size matches the base size the link above expects.
func (r *Resolver) walkChain(id Hash, p *packFile, e *packEntry, wantBase uint64) error {
	visited := map[baseKey]struct{}{{pack: p, offset: e.offset}: {}}
	walked := []baseKey{{pack: p, offset: e.offset}}
	for {
		r.mu.Lock()
		_, done := r.chains[baseKey{pack: p, offset: e.offset}]
		r.mu.Unlock()
		if done {
			break
		}

		bp, boff := p, e.baseOffset
		if e.typ == PackRefDelta {
			loc, err := r.store.locate(e.baseID)
			if err != nil {
				return corrupt("resolve", id, "missing delta base %s", e.baseID)
			}
			if loc.pack == nil {
				_, size, err := readLooseHeader(loc.loose)
				if err != nil {
					return corrupt("resolve", id, "delta base %s: %v", e.baseID, err)
				}
				if size != wantBase {
					return corrupt("resolve", id, "delta base %s size %d, delta expects %d", e.baseID, size, wantBase)
				}
				break
			}
			bp, boff = loc.pack, loc.offset
		}

		key := baseKey{pack: bp, offset: boff}
		if _, seen := visited[key]; seen {
			return corrupt("resolve", id, "delta chain cycles back to offset %d", boff)
		}
		visited[key] = struct{}{}
		walked = append(walked, key)

		next, err := r.entry(bp, boff)
		if err != nil {
			return corrupt("resolve", id, "delta base: %v", err)
		}
		if !next.typ.IsDelta() {
			if next.size != wantBase {
				return corrupt("resolve", id, "delta base at %d size %d, delta expects %d", boff, next.size, wantBase)
			}
			break
		}
		nb, nr, err := r.deltaHeader(bp, next)
		if err != nil {
			return corrupt("resolve", id, "delta base: %v", err)
		}
		if nr != wantBase {
			return corrupt("resolve", id, "delta base at %d yields %d bytes, delta expects %d", boff, nr, wantBase)
		}
		p, e, wantBase = bp, next, nb
	}

	r.mu.Lock()
	for _, k := range walked {
		r.chains[k] = struct{}{}
	}
	r.mu.Unlock()
	return nil
}

func (r *Resolver) entry(p *packFile, offset uint64) (*packEntry, error) {
	e, err := p.entryAt(offset)
	if err != nil {
		return nil, err
	}
	if r.opts.Verify {
		if err := p.checkCRC(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (r *Resolver) deltaHeader(p *packFile, e *packEntry) (uint64, uint64, error) {
	var (
		delta []byte
		err   error
	)
	if r.opts.Verify {
		delta, err = p.inflate(e)
	} else {
		delta, err = p.inflatePrefix(e, deltaSizePrefix)
	}
	if err != nil {
		return 0, 0, err
	}
	return deltaSizes(delta)
}

// ReadObject reconstructs the full content of id. The returned slice may be
// shared with the resolver's base cache and must not be modified.
func (r *Resolver) ReadObject(id Hash) (ObjectType, []byte, error) {
	loc, err := r.store.locate(id)
	if err != nil {
		return "", nil, err
	}

	var (
		typ  ObjectType
		data []byte
	)
	if loc.pack == nil {
		typ, data, err = readLoose(loc.loose)
		if err != nil {
			return "", nil, corrupt("read", id, "loose: %v", err)
		}
	} else {
		typ, data, err = r.readPacked(id, loc.pack, loc.offset)
		if err != nil {
			return "", nil, err
		}
	}
	if r.opts.VerifyContent && HashObject(typ, data) != id {
		return "", nil, corrupt("read", id, "content hashes to %s", HashObject(typ, data))
	}
	return typ, data, nil
}

type chainLink struct {
	pack  *packFile
	entry *packEntry
}

func (r *Resolver) readPacked(id Hash, p *packFile, offset uint64) (ObjectType, []byte, error) {
	var (
		chain []chainLink
		typ   ObjectType
		data  []byte
	)
	visited := make(map[baseKey]struct{})
	for {
		key := baseKey{pack: p, offset: offset}
		if t, d, ok := r.bases.get(key); ok {
			typ, data = t, d
			break
		}
		if _, seen := visited[key]; seen {
			return "", nil, corrupt("read", id, "delta chain cycles back to offset %d", offset)
		}
		visited[key] = struct{}{}

		e, err := r.entry(p, offset)
		if err != nil {
			return "", nil, corrupt("read", id, "%v", err)
		}
		if !e.typ.IsDelta() {
			raw, err := p.inflate(e)
			if err != nil {
				return "", nil, corrupt("read", id, "%v", err)
			}
			typ, _ = e.typ.ObjectType()
			data = raw
			if len(chain) > 0 {
				r.bases.put(key, typ, data)
			}
			break
		}

		chain = append(chain, chainLink{pack: p, entry: e})
		if e.typ == PackOfsDelta {
			offset = e.baseOffset
			continue
		}
		loc, err := r.store.locate(e.baseID)
		if err != nil {
			return "", nil, corrupt("read", id, "missing delta base %s", e.baseID)
		}
		if loc.pack == nil {
			typ, data, err = readLoose(loc.loose)
			if err != nil {
				return "", nil, corrupt("read", id, "delta base %s: %v", e.baseID, err)
			}
			break
		}
		p, offset = loc.pack, loc.offset
	}

	for i := len(chain) - 1; i >= 0; i-- {
		link := chain[i]
		delta, err := link.pack.inflate(link.entry)
		if err != nil {
			return "", nil, corrupt("read", id, "%v", err)
		}
		data, err = applyDelta(data, delta)
		if err != nil {
			return "", nil, corrupt("read", id, "delta at %d: %v", link.entry.offset, err)
		}
		if i > 0 {
			r.bases.put(baseKey{pack: link.pack, offset: link.entry.offset}, typ, data)
		}
	}
	return typ, data, nil
}

// ReadCommit reads and parses a commit object.
func (r *Resolver) ReadCommit(id Hash) (*CommitObj, error) {
	objType, data, err := r.ReadObject(id)
	if err != nil {
		return nil, err
	}
	if objType != TypeCommit {
		return nil, corrupt("read", id, "type mismatch: got %q, want %q", objType, TypeCommit)
	}
	c, err := UnmarshalCommit(data)
	if err != nil {
		return nil, corrupt("read", id, "%v", err)
	}
	return c, nil
}

// ReadTree reads and parses a tree object.
func (r *Resolver) ReadTree(id Hash) (*TreeObj, error) {
	objType, data, err := r.ReadObject(id)
	if err != nil {
		return nil, err
	}
	if objType != TypeTree {
		return nil, corrupt("read", id, "type mismatch: got %q, want %q", objType, TypeTree)
	}
	t, err := UnmarshalTree(data)
	if err != nil {
		return nil, corrupt("read", id, "%v", err)
	}
	return t, nil
}
