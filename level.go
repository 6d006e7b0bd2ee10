package phlex

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// levelSegment is one step in a LevelID's ancestry: a named level
// ("job", "run", "event",...) and a sequence number distinguishing
// siblings at that level.
type levelSegment struct {
	Name   string
	Number int
}

// LevelID is an immutable, hierarchical identifier for a point in the
// store tree. It is built by repeated appends (MakeChild) and never
// mutated in place; every LevelID shares structure with its parent via an
// ordinary pointer, which is enough in Go — there is no refcounting to
// manage, since the ancestor simply outlives whatever children still
// reference it and the GC reclaims it once nothing does.
//
// The hash is computed once, at construction, using a stable algorithm
// (FNV-1a over the segment chain) rather than Go's randomized map hash,
// because level ids are logged, compared across runs, and used as map
// keys whose order implicitly matters for reproducible tests.
type LevelID struct {
	parent  *LevelID
	segment levelSegment
	depth   int
	hash    uint64
}

// RootLevel returns the identifier of the job-level root store, the
// single ancestor of every other LevelID in a run.
func RootLevel(job string) LevelID {
	return LevelID{segment: levelSegment{Name: job, Number: 0}, depth: 0, hash: hashSegment(0, job, 0)}
}

// Child returns a new LevelID one level deeper than the receiver, naming
// a level and a sequence number unique among siblings at that level under
// this parent.
func (l LevelID) Child(levelName string, number int) LevelID {
	parent := l
	return LevelID{
		parent:  &parent,
		segment: levelSegment{Name: levelName, Number: number},
		depth:   l.depth + 1,
		hash:    hashSegment(l.hash, levelName, number),
	}
}

// Depth is the number of ancestors between this level and the root,
// inclusive of the root (root has depth 0).
func (l LevelID) Depth() int { return l.depth }

// LevelName is the name of the level this identifier was created at
// (e.g. "event", "segment").
func (l LevelID) LevelName() string { return l.segment.Name }

// Number is the sequence number of this identifier among siblings at its
// level under the same parent.
func (l LevelID) Number() int { return l.segment.Number }

// Parent walks up the ancestry chain looking for the nearest enclosing
// identifier whose level name matches levelName. It returns the zero
// value and false if no such ancestor exists.
func (l LevelID) Parent(levelName string) (LevelID, bool) {
	cur := &l
	for cur != nil {
		if cur.segment.Name == levelName {
			return *cur, true
		}
		cur = cur.parent
	}
	return LevelID{}, false
}

// IsAncestorOf reports whether l is an ancestor of (or equal to) other by
// walking other's chain looking for a hash match at the right depth.
func (l LevelID) IsAncestorOf(other LevelID) bool {
	if other.depth < l.depth {
		return false
	}
	cur := &other
	for cur.depth > l.depth {
		cur = cur.parent
	}
	return cur.hash == l.hash
}

// Equal reports identifier equality by hash and depth; hash collisions
// across different depths are impossible by construction, and same-depth
// collisions are astronomically unlikely with FNV-1a over a bounded
// segment alphabet.
func (l LevelID) Equal(other LevelID) bool {
	return l.depth == other.depth && l.hash == other.hash
}

// String renders the full ancestry chain, root first, as
// "job:0/event:3/segment:1".
func (l LevelID) String() string {
	parts := make([]string, 0, l.depth+1)
	cur := &l
	for cur != nil {
		parts = append([]string{fmt.Sprintf("%s:%d", cur.segment.Name, cur.segment.Number)}, parts...)
		cur = cur.parent
	}
	return strings.Join(parts, "/")
}

// Hash returns the stable, process-independent hash used as a map key by
// the product store and scheduler.
func (l LevelID) Hash() uint64 { return l.hash }

func hashSegment(parentHash uint64, name string, number int) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(parentHash >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{byte(number), byte(number >> 8), byte(number >> 16), byte(number >> 24)})
	return h.Sum64()
}
