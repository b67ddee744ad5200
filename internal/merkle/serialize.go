package merkle

import "fmt"

// Info summarises the tree structure.
type Info struct {
	TotalLeaves int    `json:"total_leaves"`
	TreeHeight  int    `json:"tree_height"`
	RootHash    string `json:"root_hash"`
	IsBuilt     bool   `json:"is_built"`
}

// Export is the wire form of a serialised tree.
type Export struct {
	Leaves     []string `json:"leaves"`
	LeafHashes []string `json:"leaf_hashes"`
	RootHash   string   `json:"root_hash"`
	TreeInfo   Info     `json:"tree_info"`
}

// LeafProof pairs a raw leaf value with its inclusion proof.
type LeafProof struct {
	LeafData string `json:"leaf_data"`
	Proof    *Proof `json:"proof"`
}

// GetInfo returns summary statistics, building the tree if needed so the
// reported root is current.
func (t *Tree) GetInfo() Info {
	root := t.Root()
	return Info{
		TotalLeaves: len(t.leafHashes),
		TreeHeight:  len(t.levels),
		RootHash:    root,
		IsBuilt:     t.root != "",
	}
}

// Serialize exports the ordered leaves, their hashes, the current root, and
// summary statistics. The export contains everything Deserialize needs to
// rebuild an equivalent tree.
func (t *Tree) Serialize() *Export {
	leaves := make([]string, len(t.leaves))
	copy(leaves, t.leaves)
	hashes := make([]string, len(t.leafHashes))
	copy(hashes, t.leafHashes)

	return &Export{
		Leaves:     leaves,
		LeafHashes: hashes,
		RootHash:   t.Root(),
		TreeInfo:   t.GetInfo(),
	}
}

// Deserialize reconstructs a tree from an export. The exported root is not
// trusted: the tree is rebuilt from leaves and leaf hashes and the root
// recomputed, so a root tampered with in transit is self-correcting rather
// than silently accepted. Structurally invalid input (nil export, missing
// leaves, length mismatch) fails loudly, since producing an empty tree would
// mask data loss.
func Deserialize(e *Export) (*Tree, error) {
	if e == nil {
		return nil, fmt.Errorf("merkle: nil export")
	}
	if e.Leaves == nil || e.LeafHashes == nil {
		return nil, fmt.Errorf("merkle: export missing leaves or leaf_hashes")
	}
	if len(e.Leaves) != len(e.LeafHashes) {
		return nil, fmt.Errorf("merkle: export has %d leaves but %d leaf hashes",
			len(e.Leaves), len(e.LeafHashes))
	}

	t := New()
	t.leaves = make([]string, len(e.Leaves))
	copy(t.leaves, e.Leaves)
	t.leafHashes = make([]string, len(e.LeafHashes))
	copy(t.leafHashes, e.LeafHashes)

	if len(t.leafHashes) > 0 {
		t.Build()
	}
	return t, nil
}

// ExportProofs generates the inclusion proof for every leaf. Useful for
// offline audit bundles exported alongside an anchored root.
func (t *Tree) ExportProofs() []LeafProof {
	proofs := make([]LeafProof, 0, len(t.leaves))
	for i := range t.leaves {
		if p, ok := t.ProofByIndex(i); ok {
			proofs = append(proofs, LeafProof{LeafData: t.leaves[i], Proof: p})
		}
	}
	return proofs
}
