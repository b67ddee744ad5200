package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chainproof/compliance-copilot/internal/evidence"
	"github.com/chainproof/compliance-copilot/internal/merkle"
	"github.com/chainproof/compliance-copilot/internal/server/handler"
)

func newMerkleRouter(t *testing.T, leaves int) (*gin.Engine, *evidence.Ledger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger := evidence.NewLedger(zap.NewNop())
	for i := 0; i < leaves; i++ {
		ledger.Append(context.Background(), fmt.Sprintf("evidence-%d", i))
	}

	router := gin.New()
	h := handler.NewMerkleHandler(ledger, zap.NewNop())
	h.Register(router.Group("/api/v1"))
	return router, ledger
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, decoded
}

func TestMerkleRoot(t *testing.T) {
	router, ledger := newMerkleRouter(t, 3)

	w, body := doJSON(t, router, http.MethodGet, "/api/v1/merkle/root", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if body["root_hash"] != ledger.Root(context.Background()) {
		t.Errorf("root mismatch: %v", body["root_hash"])
	}
	if body["total_leaves"].(float64) != 3 {
		t.Errorf("total_leaves: %v", body["total_leaves"])
	}
}

func TestMerkleProofByHash(t *testing.T) {
	router, _ := newMerkleRouter(t, 4)

	w, body := doJSON(t, router, http.MethodGet, "/api/v1/merkle/proof?evidence_hash=evidence-2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %v", w.Code, body)
	}
	if body["leaf_index"].(float64) != 2 {
		t.Errorf("leaf_index: %v", body["leaf_index"])
	}

	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/merkle/proof?evidence_hash=absent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("absent hash: status %d, want 404", w.Code)
	}

	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/merkle/proof", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing param: status %d, want 400", w.Code)
	}
}

func TestMerkleProofByIndex(t *testing.T) {
	router, _ := newMerkleRouter(t, 4)

	w, _ := doJSON(t, router, http.MethodGet, "/api/v1/merkle/proof/0", nil)
	if w.Code != http.StatusOK {
		t.Errorf("index 0: status %d", w.Code)
	}

	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/merkle/proof/99", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("out of range: status %d, want 404", w.Code)
	}

	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/merkle/proof/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric: status %d, want 400", w.Code)
	}
}

func TestMerkleVerify(t *testing.T) {
	router, ledger := newMerkleRouter(t, 5)
	ctx := context.Background()

	proof, ok := ledger.Proof(ctx, "evidence-1")
	if !ok {
		t.Fatal("setup: no proof")
	}

	w, body := doJSON(t, router, http.MethodPost, "/api/v1/merkle/verify", map[string]any{
		"proof":         proof,
		"evidence_data": "evidence-1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if body["valid"] != true {
		t.Errorf("expected valid proof: %v", body)
	}

	// Wrong evidence data fails.
	_, body = doJSON(t, router, http.MethodPost, "/api/v1/merkle/verify", map[string]any{
		"proof":         proof,
		"evidence_data": "evidence-0",
	})
	if body["valid"] != false {
		t.Errorf("expected invalid proof: %v", body)
	}

	// Missing proof is a 400.
	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/merkle/verify", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing proof: status %d, want 400", w.Code)
	}
}

func TestMerkleInfoAndExport(t *testing.T) {
	router, _ := newMerkleRouter(t, 3)

	w, body := doJSON(t, router, http.MethodGet, "/api/v1/merkle/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("info status %d", w.Code)
	}
	if body["total_leaves"].(float64) != 3 || body["is_built"] != true {
		t.Errorf("info: %v", body)
	}

	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/merkle/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status %d", w.Code)
	}
	var export merkle.Export
	if err := json.Unmarshal(w.Body.Bytes(), &export); err != nil {
		t.Fatal(err)
	}
	restored, err := merkle.Deserialize(&export)
	if err != nil {
		t.Fatalf("exported tree does not round-trip: %v", err)
	}
	if restored.Root() != export.RootHash {
		t.Error("restored root mismatch")
	}
}
