// Package merkle implements the append-only evidence tree at the heart of the
// compliance ledger. Raw evidence fingerprints are appended as leaves; the
// tree produces a SHA-256 root suitable for on-chain anchoring and per-leaf
// inclusion proofs suitable for audit and ZK consumption.
//
// Hashing convention: every hash is the lowercase hex SHA-256 of a string,
// and parent hashes are computed over the *hex-string concatenation* of the
// two child hashes (not raw bytes). A level with an odd node count pairs its
// final node with itself. Both rules are wire-compatible with the anchored
// roots already on chain and must not change.
//
// The tree is not safe for concurrent use; callers that mutate and read from
// multiple goroutines must serialise access (see the evidence package).
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
)

// node is one slot in a per-level arena. A node is either a leaf (data set,
// left/right unused) or an internal node whose left/right fields index into
// the level below. A node never has exactly one child.
type node struct {
	hash string
	data string // leaf nodes only
	left int    // internal nodes: index into the previous level
	right int
	leaf bool
}

// Tree is an append-only Merkle tree over opaque evidence strings.
//
// Leaf order is semantically significant: the same values in a different
// order produce a different root, and leaves are never reordered or removed.
// The per-level node cache (levels[0] = leaves, last level = the root node)
// is rebuilt lazily and invalidated by every AddLeaf.
type Tree struct {
	leaves     []string
	leafHashes []string
	levels     [][]node
	root       string // empty until built
}

// New creates an empty Tree.
func New() *Tree {
	return &Tree{}
}

// AddLeaf hashes data, appends it to the leaf store, and invalidates the
// cached levels and root. It never fails; data is opaque and unvalidated.
// The returned leaf hash is what callers later pass to Proof lookups.
func (t *Tree) AddLeaf(data string) string {
	leafHash := hashData(data)
	t.leaves = append(t.leaves, data)
	t.leafHashes = append(t.leafHashes, leafHash)

	// Cache is stale the moment the leaf store changes.
	t.levels = nil
	t.root = ""
	return leafHash
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.leaves)
}

// LeafHash returns the hash of the leaf at index i, or ("", false) when i is
// out of range.
func (t *Tree) LeafHash(i int) (string, bool) {
	if i < 0 || i >= len(t.leafHashes) {
		return "", false
	}
	return t.leafHashes[i], true
}

// Build constructs the full tree bottom-up, caches every level, and returns
// the root hash.
//
// An empty tree's root is H(""); no node levels are materialised. A
// single-leaf tree's root is that leaf's hash and the cache holds just the
// one-element leaf level.
func (t *Tree) Build() string {
	if len(t.leafHashes) == 0 {
		t.levels = nil
		t.root = hashData("")
		return t.root
	}

	level := make([]node, len(t.leafHashes))
	for i, h := range t.leafHashes {
		level[i] = node{hash: h, data: t.leaves[i], leaf: true}
	}
	t.levels = [][]node{level}

	for len(level) > 1 {
		next := make([]node, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := i
			right := i + 1
			if right >= len(level) {
				// Odd node count: the last node is paired with itself.
				right = i
			}
			next = append(next, node{
				hash:  hashData(level[left].hash + level[right].hash),
				left:  left,
				right: right,
			})
		}
		t.levels = append(t.levels, next)
		level = next
	}

	t.root = level[0].hash
	return t.root
}

// Root returns the cached root hash, building the tree first if a leaf was
// added since the last build. Once built it is idempotent and side-effect
// free.
func (t *Tree) Root() string {
	if t.root == "" {
		return t.Build()
	}
	return t.root
}

// Height returns the number of cached levels (0 for an unbuilt or empty
// tree, 1 for a single leaf).
func (t *Tree) Height() int {
	return len(t.levels)
}

// hashData returns the lowercase hex SHA-256 digest of s.
func hashData(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
