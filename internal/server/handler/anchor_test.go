package handler_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainproof/compliance-copilot/internal/anchor"
	"github.com/chainproof/compliance-copilot/internal/compliance"
	"github.com/chainproof/compliance-copilot/internal/evidence"
	"github.com/chainproof/compliance-copilot/internal/server/handler"
	"github.com/chainproof/compliance-copilot/internal/transactions"
)

func newAnchorRouter(t *testing.T) (*gin.Engine, *transactions.Service, *evidence.Ledger) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	ledger := evidence.NewLedger(logger)
	engine := compliance.NewEngine(compliance.DefaultConfig(), logger)
	svc := transactions.NewService(transactions.NewMemoryRepository(), engine, ledger, logger)

	router := gin.New()
	h := handler.NewAnchorHandler(anchor.NewNoopAnchorer(logger), ledger, svc, nil, logger)
	h.Register(router.Group("/api/v1"))
	return router, svc, ledger
}

func TestAnchorLedgerRootStampsTransactions(t *testing.T) {
	router, svc, ledger := newAnchorRouter(t)
	ctx := context.Background()

	tx, err := svc.Submit(ctx, transactions.SubmitRequest{
		WalletFrom: "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		WalletTo:   "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
		Amount:     decimal.NewFromInt(100),
		Currency:   "USDC",
		KYCProofID: "kyc-proof-12345",
	})
	if err != nil {
		t.Fatal(err)
	}

	w, body := doJSON(t, router, http.MethodPost, "/api/v1/anchor/root", map[string]any{})
	if w.Code != http.StatusOK {
		t.Fatalf("anchor: status %d: %v", w.Code, body)
	}
	if body["transactions_stamped"].(float64) != 1 {
		t.Errorf("stamped: %v", body["transactions_stamped"])
	}

	got, err := svc.Get(ctx, tx.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := "0x" + ledger.Root(ctx)
	if got.AnchoredRoot != want {
		t.Errorf("anchored root: got %q, want %q", got.AnchoredRoot, want)
	}

	w, events := doJSON(t, router, http.MethodGet, "/api/v1/anchor/events", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("events: status %d", w.Code)
	}
	if events["count"].(float64) != 1 {
		t.Errorf("event count: %v", events["count"])
	}
}

func TestAnchorExplicitRoot(t *testing.T) {
	router, _, _ := newAnchorRouter(t)

	root := "0x" + strings.Repeat("ab", 32)
	w, body := doJSON(t, router, http.MethodPost, "/api/v1/anchor/root", map[string]any{"root": root})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %v", w.Code, body)
	}
	// Explicit roots do not stamp transactions.
	if body["transactions_stamped"].(float64) != 0 {
		t.Errorf("stamped: %v", body["transactions_stamped"])
	}
}

func TestAnchorHealth(t *testing.T) {
	router, _, _ := newAnchorRouter(t)

	w, body := doJSON(t, router, http.MethodGet, "/api/v1/anchor/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if body["connected"] != true {
		t.Errorf("health: %v", body)
	}
}
