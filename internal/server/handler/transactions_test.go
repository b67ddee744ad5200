package handler_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chainproof/compliance-copilot/internal/compliance"
	"github.com/chainproof/compliance-copilot/internal/evidence"
	"github.com/chainproof/compliance-copilot/internal/server/handler"
	"github.com/chainproof/compliance-copilot/internal/transactions"
)

func newTxRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	ledger := evidence.NewLedger(logger)
	engine := compliance.NewEngine(compliance.DefaultConfig(), logger)
	svc := transactions.NewService(transactions.NewMemoryRepository(), engine, ledger, logger)

	router := gin.New()
	h := handler.NewTransactionHandler(svc, nil, logger)
	h.Register(router.Group("/api/v1"))
	return router
}

func submitBody(amount float64) map[string]any {
	return map[string]any{
		"wallet_from":  "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		"wallet_to":    "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
		"amount":       amount,
		"currency":     "USDC",
		"kyc_proof_id": "kyc-proof-12345",
	}
}

func TestSubmitTransaction(t *testing.T) {
	router := newTxRouter(t)

	w, body := doJSON(t, router, http.MethodPost, "/api/v1/tx/submit", submitBody(100))
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %v", w.Code, body)
	}
	if body["decision"] != "PASS" {
		t.Errorf("decision: %v", body["decision"])
	}
	if body["evidence_hash"] == "" || body["merkle_leaf"] == "" {
		t.Error("response missing evidence linkage")
	}
}

func TestSubmitValidation(t *testing.T) {
	router := newTxRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/tx/submit", map[string]any{
		"wallet_to": "0xabc",
		"amount":    10,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing wallet_from: status %d, want 400", w.Code)
	}
}

func TestGetAndListTransactions(t *testing.T) {
	router := newTxRouter(t)

	_, created := doJSON(t, router, http.MethodPost, "/api/v1/tx/submit", submitBody(100))
	id := created["tx_id"].(string)

	w, got := doJSON(t, router, http.MethodGet, "/api/v1/tx/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	if got["tx_id"] != id {
		t.Errorf("get returned wrong transaction: %v", got["tx_id"])
	}

	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/tx/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status %d, want 400", w.Code)
	}

	w, list := doJSON(t, router, http.MethodGet, "/api/v1/tx", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	if list["count"].(float64) != 1 {
		t.Errorf("list count: %v", list["count"])
	}

	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/tx?decision=BOGUS", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus decision filter: status %d, want 400", w.Code)
	}
}

func TestReviewQueueAndOverride(t *testing.T) {
	router := newTxRouter(t)

	// Missing KYC proof forces a HOLD.
	held := submitBody(100)
	delete(held, "kyc_proof_id")
	_, created := doJSON(t, router, http.MethodPost, "/api/v1/tx/submit", held)
	if created["decision"] != "HOLD" {
		t.Fatalf("setup: decision %v, want HOLD", created["decision"])
	}
	id := created["tx_id"].(string)

	w, queue := doJSON(t, router, http.MethodGet, "/api/v1/tx/review", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("review: status %d", w.Code)
	}
	if queue["count"].(float64) != 1 {
		t.Errorf("review count: %v", queue["count"])
	}

	w, overridden := doJSON(t, router, http.MethodPost, "/api/v1/tx/"+id+"/override", map[string]any{
		"decision": "PASS",
		"note":     "verified out of band",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("override: status %d: %v", w.Code, overridden)
	}
	if overridden["decision"] != "PASS" {
		t.Errorf("decision after override: %v", overridden["decision"])
	}

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/tx/"+id+"/override", map[string]any{
		"decision": "PENDING",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("override to PENDING: status %d, want 400", w.Code)
	}
}

func TestTransactionStats(t *testing.T) {
	router := newTxRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/tx/submit", submitBody(100))

	w, stats := doJSON(t, router, http.MethodGet, "/api/v1/tx/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: status %d", w.Code)
	}
	decisions := stats["decisions"].(map[string]any)
	if decisions["PASS"].(float64) != 1 {
		t.Errorf("PASS count: %v", decisions["PASS"])
	}
	if stats["ledger_root"] == "" {
		t.Error("stats missing ledger root")
	}
}
