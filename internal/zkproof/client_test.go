package zkproof_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chainproof/compliance-copilot/internal/zkproof"
)

func TestGenerateComplianceProof(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/prove/compliance" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req zkproof.ProveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.TransactionData["amount"] != "150" {
			t.Errorf("transactionData not forwarded: %+v", req.TransactionData)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"proofId":       "proof-1",
			"proof":         map[string]any{"pi_a": []string{"1", "2"}},
			"publicSignals": []string{"42"},
		})
	}))
	defer srv.Close()

	c := zkproof.NewClient(srv.URL)
	proof, err := c.GenerateComplianceProof(context.Background(), zkproof.ProveRequest{
		TransactionData:    map[string]any{"amount": "150"},
		ComplianceEvidence: map[string]any{"risk_score": 0},
	})
	if err != nil {
		t.Fatalf("GenerateComplianceProof: %v", err)
	}
	if proof.ProofID != "proof-1" {
		t.Errorf("proofId: got %q", proof.ProofID)
	}
	if len(proof.PublicSignals) != 1 || proof.PublicSignals[0] != "42" {
		t.Errorf("publicSignals: got %v", proof.PublicSignals)
	}
}

func TestVerifyProof_exclusiveForms(t *testing.T) {
	c := zkproof.NewClient("http://unused.invalid")
	ctx := context.Background()

	if _, err := c.VerifyProof(ctx, zkproof.VerifyRequest{}); err == nil {
		t.Error("expected error when neither form is set")
	}
	both := zkproof.VerifyRequest{ProofID: "p", Proof: json.RawMessage(`{}`)}
	if _, err := c.VerifyProof(ctx, both); err == nil {
		t.Error("expected error when both forms are set")
	}
}

func TestVerifyProof_byID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(zkproof.VerifyResult{Valid: true, ProofID: "proof-9"})
	}))
	defer srv.Close()

	res, err := zkproof.NewClient(srv.URL).VerifyProof(context.Background(), zkproof.VerifyRequest{ProofID: "proof-9"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid || res.ProofID != "proof-9" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestErrorResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "proof not found"})
	}))
	defer srv.Close()

	_, err := zkproof.NewClient(srv.URL).GetProof(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if got := err.Error(); !strings.Contains(got, "proof not found") {
		t.Errorf("error should carry the service message, got %q", got)
	}
}

func TestListAndDelete(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/proofs":
			json.NewEncoder(w).Encode(map[string]any{
				"proofs": []map[string]any{{"proofId": "a"}, {"proofId": "b"}},
			})
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := zkproof.NewClient(srv.URL)
	proofs, err := c.ListProofs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(proofs) != 2 {
		t.Fatalf("proofs: got %d, want 2", len(proofs))
	}
	if err := c.DeleteProof(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if deleted != "/proofs/a" {
		t.Errorf("delete path: got %q", deleted)
	}
}
