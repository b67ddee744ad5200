package compliance

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Decision is the outcome of a compliance evaluation.
type Decision string

const (
	DecisionPending Decision = "PENDING"
	DecisionPass    Decision = "PASS"
	DecisionHold    Decision = "HOLD"
	DecisionReject  Decision = "REJECT"
)

// Valid reports whether d is one of the known decision values.
func (d Decision) Valid() bool {
	switch d {
	case DecisionPending, DecisionPass, DecisionHold, DecisionReject:
		return true
	}
	return false
}

// Input describes a transaction to evaluate.
type Input struct {
	WalletFrom string
	WalletTo   string
	Amount     decimal.Decimal
	Currency   string
	KYCProofID string
	Metadata   map[string]string
}

// Config holds the engine's tunable thresholds.
type Config struct {
	// AmountThreshold is the USD-equivalent amount above which a
	// transaction is flagged.
	AmountThreshold decimal.Decimal
	// VelocityThreshold is the amount above which the velocity rule fires.
	VelocityThreshold decimal.Decimal
	// KYCRequired forces every transaction to carry a KYC proof ID.
	KYCRequired bool
	// MaxRiskScore is the score at or above which a transaction is rejected.
	MaxRiskScore int
	// Blacklist seeds the initial set of blocked wallet addresses.
	Blacklist []string
}

// DefaultConfig returns the thresholds the original ruleset shipped with.
func DefaultConfig() Config {
	return Config{
		AmountThreshold:   decimal.NewFromInt(1000),
		VelocityThreshold: decimal.NewFromInt(500),
		KYCRequired:       true,
		MaxRiskScore:      100,
		Blacklist: []string{
			"0x000000000000000000000000000000000000dead",
			"0x1111111111111111111111111111111111111111",
			"0x0000000000000000000000000000000000000000",
		},
	}
}

// Engine evaluates transactions against the configured rule set. The
// blacklist is mutable at runtime; everything else is fixed at construction.
type Engine struct {
	mu        sync.RWMutex
	blacklist map[string]struct{}
	cfg       Config
	logger    *zap.Logger
}

// NewEngine creates an Engine from cfg. Zero thresholds fall back to the
// defaults.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.AmountThreshold.IsZero() {
		cfg.AmountThreshold = def.AmountThreshold
	}
	if cfg.VelocityThreshold.IsZero() {
		cfg.VelocityThreshold = def.VelocityThreshold
	}
	if cfg.MaxRiskScore == 0 {
		cfg.MaxRiskScore = def.MaxRiskScore
	}

	e := &Engine{
		blacklist: make(map[string]struct{}),
		cfg:       cfg,
		logger:    logger,
	}
	for _, w := range cfg.Blacklist {
		e.blacklist[strings.ToLower(w)] = struct{}{}
	}

	logger.Info("compliance engine initialised",
		zap.Int("blacklisted_wallets", len(e.blacklist)),
		zap.String("amount_threshold", cfg.AmountThreshold.String()),
		zap.Bool("kyc_required", cfg.KYCRequired),
	)
	return e
}

// Evaluate runs every rule against the input and returns the decision, a
// human-readable reason, and the collected evidence. A blacklist hit
// short-circuits to REJECT before the remaining rules run.
func (e *Engine) Evaluate(_ context.Context, in Input) (Decision, string, *Evidence) {
	ev := NewEvidence(in.Metadata)

	e.logger.Info("evaluating transaction",
		zap.String("wallet_from", in.WalletFrom),
		zap.String("wallet_to", in.WalletTo),
		zap.String("amount", in.Amount.String()),
		zap.String("currency", in.Currency),
	)

	passed, detail := e.checkBlacklist(in.WalletFrom, in.WalletTo)
	ev.AddRule(RuleBlacklistCheck, passed, detail)
	if !passed {
		reason := "REJECT: " + detail
		e.logger.Warn("transaction rejected", zap.String("reason", reason))
		return DecisionReject, reason, ev
	}

	passed, detail = e.checkAmountThreshold(in.Amount, in.Currency)
	ev.AddRule(RuleAmountThreshold, passed, detail)

	passed, detail = e.checkKYC(in.KYCProofID)
	ev.AddRule(RuleKYCRequirement, passed, detail)

	passed, detail = e.checkVelocity(in.Amount)
	ev.AddRule(RuleVelocityCheck, passed, detail)

	decision, reason := e.decide(ev)
	e.logger.Info("transaction decision",
		zap.String("decision", string(decision)),
		zap.Int("risk_score", ev.RiskScore),
	)
	return decision, reason, ev
}

func (e *Engine) checkBlacklist(from, to string) (bool, string) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, hit := e.blacklist[strings.ToLower(from)]; hit {
		return false, fmt.Sprintf("source wallet %s is blacklisted", from)
	}
	if _, hit := e.blacklist[strings.ToLower(to)]; hit {
		return false, fmt.Sprintf("destination wallet %s is blacklisted", to)
	}
	return true, "no blacklisted wallets detected"
}

func (e *Engine) checkAmountThreshold(amount decimal.Decimal, currency string) (bool, string) {
	// Amounts are treated as 1:1 USD equivalents; real exchange rates are a
	// collaborator concern.
	if amount.GreaterThan(e.cfg.AmountThreshold) {
		return false, fmt.Sprintf("amount %s %s exceeds threshold %s USD",
			amount, currency, e.cfg.AmountThreshold)
	}
	return true, fmt.Sprintf("amount %s %s within acceptable threshold", amount, currency)
}

func (e *Engine) checkKYC(proofID string) (bool, string) {
	if e.cfg.KYCRequired && proofID == "" {
		return false, "KYC proof required but not provided"
	}
	if proofID != "" {
		if len(proofID) < 5 {
			return false, fmt.Sprintf("invalid KYC proof format: %s", proofID)
		}
		return true, fmt.Sprintf("valid KYC proof provided: %s", proofID)
	}
	return true, "KYC not required for this transaction"
}

func (e *Engine) checkVelocity(amount decimal.Decimal) (bool, string) {
	if amount.GreaterThan(e.cfg.VelocityThreshold) {
		return false, fmt.Sprintf("high velocity detected: amount %s exceeds velocity threshold", amount)
	}
	return true, "transaction velocity within normal limits"
}

// decide maps the accumulated evidence to a final decision.
func (e *Engine) decide(ev *Evidence) (Decision, string) {
	for _, r := range ev.RulesApplied {
		if r.Rule == RuleBlacklistCheck && !r.Passed {
			return DecisionReject, "critical rule failure: " + r.Details
		}
	}

	switch {
	case ev.RiskScore >= e.cfg.MaxRiskScore:
		return DecisionReject, fmt.Sprintf("risk score %d exceeds maximum threshold", ev.RiskScore)
	case ev.RiskScore >= 50:
		return DecisionHold, fmt.Sprintf("elevated risk score %d requires manual review", ev.RiskScore)
	case len(ev.Flags) > 0:
		return DecisionHold, "transaction flagged for review: " + strings.Join(ev.Flags, "; ")
	default:
		return DecisionPass, "all compliance checks passed"
	}
}

// AddToBlacklist blocks a wallet address. Returns false when it was already
// blacklisted.
func (e *Engine) AddToBlacklist(wallet string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := strings.ToLower(wallet)
	if _, ok := e.blacklist[key]; ok {
		return false
	}
	e.blacklist[key] = struct{}{}
	e.logger.Info("wallet blacklisted", zap.String("wallet", wallet))
	return true
}

// RemoveFromBlacklist unblocks a wallet address. Returns false when it was
// not blacklisted.
func (e *Engine) RemoveFromBlacklist(wallet string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := strings.ToLower(wallet)
	if _, ok := e.blacklist[key]; !ok {
		return false
	}
	delete(e.blacklist, key)
	e.logger.Info("wallet removed from blacklist", zap.String("wallet", wallet))
	return true
}

// Summary describes the engine configuration for the ops API.
type Summary struct {
	BlacklistedWallets int      `json:"blacklisted_wallets_count"`
	AmountThresholdUSD string   `json:"amount_threshold_usd"`
	KYCRequired        bool     `json:"kyc_required"`
	MaxRiskScore       int      `json:"max_risk_score"`
	SupportedRules     []string `json:"supported_rules"`
}

// GetSummary returns the engine's configuration summary.
func (e *Engine) GetSummary() Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Summary{
		BlacklistedWallets: len(e.blacklist),
		AmountThresholdUSD: e.cfg.AmountThreshold.String(),
		KYCRequired:        e.cfg.KYCRequired,
		MaxRiskScore:       e.cfg.MaxRiskScore,
		SupportedRules: []string{
			string(RuleBlacklistCheck),
			string(RuleAmountThreshold),
			string(RuleKYCRequirement),
			string(RuleVelocityCheck),
			string(RuleJurisdictionCheck),
		},
	}
}
