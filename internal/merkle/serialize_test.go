package merkle_test

import (
	"encoding/json"
	"testing"

	"github.com/chainproof/compliance-copilot/internal/merkle"
)

func TestSerialize_roundTripPreservesRoot(t *testing.T) {
	tree := buildTree(t, 7)
	root := tree.Root()

	restored, err := merkle.Deserialize(tree.Serialize())
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if got := restored.Root(); got != root {
		t.Errorf("restored root: got %q, want %q", got, root)
	}

	// Every leaf's proof must remain valid in the restored tree.
	for i := 0; i < 7; i++ {
		p, ok := restored.ProofByIndex(i)
		if !ok {
			t.Fatalf("restored tree has no proof for index %d", i)
		}
		if !restored.VerifyProof(p) {
			t.Errorf("restored tree: proof %d invalid", i)
		}
	}
}

func TestDeserialize_recomputesTamperedRoot(t *testing.T) {
	tree := buildTree(t, 4)
	want := tree.Root()

	export := tree.Serialize()
	export.RootHash = "0000000000000000000000000000000000000000000000000000000000000000"

	restored, err := merkle.Deserialize(export)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got := restored.Root(); got != want {
		t.Errorf("tampered export root was trusted: got %q, want recomputed %q", got, want)
	}
}

func TestDeserialize_invalidInput(t *testing.T) {
	cases := []struct {
		name   string
		export *merkle.Export
	}{
		{"nil export", nil},
		{"missing leaves", &merkle.Export{LeafHashes: []string{"ab"}}},
		{"missing leaf hashes", &merkle.Export{Leaves: []string{"a"}}},
		{"length mismatch", &merkle.Export{Leaves: []string{"a", "b"}, LeafHashes: []string{"ab"}}},
	}
	for _, tc := range cases {
		if _, err := merkle.Deserialize(tc.export); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}

func TestDeserialize_emptyTree(t *testing.T) {
	restored, err := merkle.Deserialize(&merkle.Export{Leaves: []string{}, LeafHashes: []string{}})
	if err != nil {
		t.Fatalf("Deserialize of empty export: %v", err)
	}
	if got, want := restored.Root(), sha256Hex(""); got != want {
		t.Errorf("empty restored root: got %q, want %q", got, want)
	}
}

func TestSerialize_wireShape(t *testing.T) {
	tree := buildTree(t, 2)

	raw, err := json.Marshal(tree.Serialize())
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"leaves", "leaf_hashes", "root_hash", "tree_info"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("export JSON missing %q", key)
		}
	}

	info := doc["tree_info"].(map[string]any)
	if got := int(info["total_leaves"].(float64)); got != 2 {
		t.Errorf("tree_info.total_leaves: got %d, want 2", got)
	}
}

func TestGetInfo(t *testing.T) {
	tree := buildTree(t, 3)
	info := tree.GetInfo()

	if info.TotalLeaves != 3 {
		t.Errorf("TotalLeaves: got %d, want 3", info.TotalLeaves)
	}
	// 3 leaves → levels of 3, 2, 1.
	if info.TreeHeight != 3 {
		t.Errorf("TreeHeight: got %d, want 3", info.TreeHeight)
	}
	if !info.IsBuilt {
		t.Error("IsBuilt should be true after GetInfo")
	}
	if info.RootHash != tree.Root() {
		t.Error("Info root does not match tree root")
	}
}

func TestExportProofs(t *testing.T) {
	tree := buildTree(t, 5)
	root := tree.Root()

	proofs := tree.ExportProofs()
	if len(proofs) != 5 {
		t.Fatalf("ExportProofs: got %d proofs, want 5", len(proofs))
	}
	for i, lp := range proofs {
		if lp.Proof.LeafIndex != i {
			t.Errorf("proof %d has index %d", i, lp.Proof.LeafIndex)
		}
		if !merkle.VerifyEvidenceInclusion(lp.LeafData, lp.Proof, root) {
			t.Errorf("exported proof %d does not verify", i)
		}
	}
}
