package merkle

// Sibling directions recorded in a proof. The direction names the side the
// *sibling* occupies relative to the node being folded.
const (
	DirLeft  = "left"
	DirRight = "right"
)

// Proof is an inclusion proof for a single leaf. Hashes and Directions are
// ordered leaf-to-root and always have equal length. RootHash is the root
// the proof was generated against; a later AddLeaf makes the proof stale.
type Proof struct {
	LeafHash   string   `json:"leaf_hash"`
	LeafIndex  int      `json:"leaf_index"`
	Hashes     []string `json:"proof_hashes"`
	Directions []string `json:"proof_directions"`
	RootHash   string   `json:"root_hash"`
}

// Verify recomputes the hash chain from LeafHash through every
// sibling/direction pair and compares the result to RootHash. It needs no
// tree access and never panics: a structurally malformed proof (mismatched
// list lengths, unknown direction) simply verifies false.
func (p *Proof) Verify() bool {
	if p == nil || len(p.Hashes) != len(p.Directions) {
		return false
	}

	current := p.LeafHash
	for i, sibling := range p.Hashes {
		switch p.Directions[i] {
		case DirLeft:
			current = hashData(sibling + current)
		case DirRight:
			current = hashData(current + sibling)
		default:
			return false
		}
	}
	return current == p.RootHash
}

// Proof generates an inclusion proof for the given raw leaf value. The leaf
// is located by linear scan of the leaf store; when the same value was added
// more than once, the first occurrence wins (use ProofByIndex for
// duplicates). Returns (nil, false) when the value is not in the tree.
func (t *Tree) Proof(leafData string) (*Proof, bool) {
	for i, leaf := range t.leaves {
		if leaf == leafData {
			return t.ProofByIndex(i)
		}
	}
	return nil, false
}

// ProofByIndex generates an inclusion proof for the leaf at index i, building
// the tree first if needed. Returns (nil, false) when i is outside
// [0, Len()). A single-leaf tree yields a proof with empty sibling and
// direction lists, since its root equals the leaf hash.
func (t *Tree) ProofByIndex(i int) (*Proof, bool) {
	if i < 0 || i >= len(t.leafHashes) {
		return nil, false
	}

	root := t.Root()

	var hashes []string
	var directions []string

	index := i
	for lvl := 0; lvl < len(t.levels)-1; lvl++ {
		nodes := t.levels[lvl]

		var sibling int
		var dir string
		if index%2 == 0 {
			sibling = index + 1
			dir = DirRight
		} else {
			sibling = index - 1
			dir = DirLeft
		}

		// The duplicated last node of an odd level has no stored sibling;
		// its pair is itself.
		if sibling >= len(nodes) {
			sibling = index
		}

		hashes = append(hashes, nodes[sibling].hash)
		directions = append(directions, dir)
		index /= 2
	}

	return &Proof{
		LeafHash:   t.leafHashes[i],
		LeafIndex:  i,
		Hashes:     hashes,
		Directions: directions,
		RootHash:   root,
	}, true
}

// VerifyProof checks a proof against this tree: the proof's embedded root
// must match the tree's current root (guarding against stale or foreign
// roots) and the proof must verify standalone.
func (t *Tree) VerifyProof(p *Proof) bool {
	if p == nil {
		return false
	}
	return p.RootHash == t.Root() && p.Verify()
}

// VerifyEvidenceInclusion checks that an original, unhashed evidence value is
// covered by proof under expectedRoot. Three conditions must all hold: the
// hash of raw equals the proof's leaf hash, the proof's embedded root equals
// expectedRoot, and the proof verifies. Any failure returns false; the check
// never panics, so it composes at boolean-only call sites.
func VerifyEvidenceInclusion(raw string, proof *Proof, expectedRoot string) bool {
	if proof == nil {
		return false
	}
	if hashData(raw) != proof.LeafHash {
		return false
	}
	if proof.RootHash != expectedRoot {
		return false
	}
	return proof.Verify()
}
