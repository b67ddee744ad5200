package compliance_test

import (
	"context"
	"testing"

	"github.com/chainproof/compliance-copilot/internal/compliance"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ctx = context.Background()

func newEngine(t *testing.T) *compliance.Engine {
	t.Helper()
	return compliance.NewEngine(compliance.DefaultConfig(), zap.NewNop())
}

func cleanInput() compliance.Input {
	return compliance.Input{
		WalletFrom: "0x742d35cc6634c0532925a3b844bc454e4438f44e",
		WalletTo:   "0x8ba1f109551bd432803012645ac136ddd64dba72",
		Amount:     decimal.NewFromInt(100),
		Currency:   "USDC",
		KYCProofID: "kyc-proof-12345",
	}
}

func TestEvaluate_cleanTransactionPasses(t *testing.T) {
	e := newEngine(t)

	decision, reason, ev := e.Evaluate(ctx, cleanInput())
	if decision != compliance.DecisionPass {
		t.Fatalf("decision: got %s, want PASS (reason: %s)", decision, reason)
	}
	if ev.RiskScore != 0 {
		t.Errorf("risk score: got %d, want 0", ev.RiskScore)
	}
	if len(ev.RulesApplied) != 4 {
		t.Errorf("rules applied: got %d, want 4", len(ev.RulesApplied))
	}
}

func TestEvaluate_blacklistedSourceRejects(t *testing.T) {
	e := newEngine(t)

	in := cleanInput()
	in.WalletFrom = "0x000000000000000000000000000000000000DEAD" // case-insensitive
	decision, _, ev := e.Evaluate(ctx, in)

	if decision != compliance.DecisionReject {
		t.Fatalf("decision: got %s, want REJECT", decision)
	}
	// Blacklist short-circuits: only one rule should have run.
	if len(ev.RulesApplied) != 1 {
		t.Errorf("rules applied after blacklist hit: got %d, want 1", len(ev.RulesApplied))
	}
	if ev.RiskScore < 100 {
		t.Errorf("risk score: got %d, want >= 100", ev.RiskScore)
	}
}

func TestEvaluate_blacklistedDestinationRejects(t *testing.T) {
	e := newEngine(t)

	in := cleanInput()
	in.WalletTo = "0x1111111111111111111111111111111111111111"
	decision, _, _ := e.Evaluate(ctx, in)
	if decision != compliance.DecisionReject {
		t.Errorf("decision: got %s, want REJECT", decision)
	}
}

func TestEvaluate_largeAmountHolds(t *testing.T) {
	e := newEngine(t)

	in := cleanInput()
	in.Amount = decimal.NewFromInt(2000) // trips both amount and velocity rules
	decision, _, ev := e.Evaluate(ctx, in)

	if decision != compliance.DecisionHold {
		t.Fatalf("decision: got %s, want HOLD", decision)
	}
	if len(ev.Flags) != 2 {
		t.Errorf("flags: got %d, want 2 (amount + velocity)", len(ev.Flags))
	}
}

func TestEvaluate_missingKYCHolds(t *testing.T) {
	e := newEngine(t)

	in := cleanInput()
	in.KYCProofID = ""
	decision, _, ev := e.Evaluate(ctx, in)

	if decision != compliance.DecisionHold {
		t.Fatalf("decision: got %s, want HOLD", decision)
	}
	if ev.RiskScore != 50 {
		t.Errorf("risk score: got %d, want 50", ev.RiskScore)
	}
}

func TestEvaluate_shortKYCProofFlagged(t *testing.T) {
	e := newEngine(t)

	in := cleanInput()
	in.KYCProofID = "abc"
	decision, _, _ := e.Evaluate(ctx, in)
	if decision != compliance.DecisionHold {
		t.Errorf("decision with malformed KYC proof: got %s, want HOLD", decision)
	}
}

func TestEvaluate_accumulatedRiskRejects(t *testing.T) {
	e := newEngine(t)

	// Missing KYC (50) + amount (30) + velocity (20) = 100 ≥ max.
	in := cleanInput()
	in.KYCProofID = ""
	in.Amount = decimal.NewFromInt(5000)
	decision, _, ev := e.Evaluate(ctx, in)

	if decision != compliance.DecisionReject {
		t.Fatalf("decision: got %s, want REJECT (score %d)", decision, ev.RiskScore)
	}
}

func TestBlacklist_addRemove(t *testing.T) {
	e := newEngine(t)

	wallet := "0xABCDEF0123456789abcdef0123456789ABCDEF01"
	if !e.AddToBlacklist(wallet) {
		t.Error("first AddToBlacklist should return true")
	}
	if e.AddToBlacklist(wallet) {
		t.Error("second AddToBlacklist should return false")
	}

	in := cleanInput()
	in.WalletFrom = wallet
	if decision, _, _ := e.Evaluate(ctx, in); decision != compliance.DecisionReject {
		t.Error("newly blacklisted wallet was not rejected")
	}

	if !e.RemoveFromBlacklist(wallet) {
		t.Error("RemoveFromBlacklist should return true")
	}
	if e.RemoveFromBlacklist(wallet) {
		t.Error("second RemoveFromBlacklist should return false")
	}
}

func TestEvidenceHash_commitToOutcome(t *testing.T) {
	e := newEngine(t)

	_, _, ev1 := e.Evaluate(ctx, cleanInput())
	if ev1.Hash() != ev1.Hash() {
		t.Error("evidence hash is not stable")
	}

	in := cleanInput()
	in.Amount = decimal.NewFromInt(9999)
	_, _, ev2 := e.Evaluate(ctx, in)
	if ev1.Hash() == ev2.Hash() {
		t.Error("different evaluations produced identical evidence hashes")
	}

	if len(ev1.Hash()) != 64 {
		t.Errorf("evidence hash is not 64 hex chars: %q", ev1.Hash())
	}
}

func TestGetSummary(t *testing.T) {
	e := newEngine(t)
	s := e.GetSummary()

	if s.BlacklistedWallets != 3 {
		t.Errorf("blacklisted wallets: got %d, want 3", s.BlacklistedWallets)
	}
	if s.AmountThresholdUSD != "1000" {
		t.Errorf("amount threshold: got %q, want \"1000\"", s.AmountThresholdUSD)
	}
	if len(s.SupportedRules) != 5 {
		t.Errorf("supported rules: got %d, want 5", len(s.SupportedRules))
	}
}
