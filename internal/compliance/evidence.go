// Package compliance evaluates transactions against deterministic compliance
// rules and produces evidence records whose SHA-256 fingerprints feed the
// evidence ledger. Every rule application is recorded, pass or fail, so the
// evidence hash commits to the full decision trail.
package compliance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// RuleType identifies a compliance rule.
type RuleType string

const (
	RuleBlacklistCheck    RuleType = "BLACKLIST_CHECK"
	RuleAmountThreshold   RuleType = "AMOUNT_THRESHOLD"
	RuleKYCRequirement    RuleType = "KYC_REQUIREMENT"
	RuleVelocityCheck     RuleType = "VELOCITY_CHECK"
	RuleJurisdictionCheck RuleType = "JURISDICTION_CHECK"
)

// ruleWeights are the risk points added when a rule fails.
var ruleWeights = map[RuleType]int{
	RuleBlacklistCheck:    100,
	RuleKYCRequirement:    50,
	RuleJurisdictionCheck: 40,
	RuleAmountThreshold:   30,
	RuleVelocityCheck:     20,
}

const defaultRuleWeight = 10

// RuleRecord is evidence of a single rule being applied.
type RuleRecord struct {
	Rule      RuleType  `json:"rule"`
	Passed    bool      `json:"passed"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Evidence accumulates the outcome of a compliance evaluation. Its Hash is
// what gets appended to the evidence ledger.
type Evidence struct {
	RulesApplied []RuleRecord      `json:"rules_applied"`
	RiskScore    int               `json:"risk_score"`
	Flags        []string          `json:"flags"`
	Metadata     map[string]string `json:"metadata"`
}

// NewEvidence creates an empty Evidence with the given metadata.
func NewEvidence(metadata map[string]string) *Evidence {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &Evidence{
		RulesApplied: []RuleRecord{},
		Flags:        []string{},
		Metadata:     metadata,
	}
}

// AddRule records a rule application. A failed rule adds the rule's risk
// weight to the score and raises a flag.
func (e *Evidence) AddRule(rule RuleType, passed bool, details string) {
	e.RulesApplied = append(e.RulesApplied, RuleRecord{
		Rule:      rule,
		Passed:    passed,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})

	if !passed {
		weight, ok := ruleWeights[rule]
		if !ok {
			weight = defaultRuleWeight
		}
		e.RiskScore += weight
		e.Flags = append(e.Flags, string(rule)+": "+details)
	}
}

// Hash returns the lowercase hex SHA-256 of the evidence's canonical JSON
// form. JSON field order is fixed by the struct definitions and map keys are
// sorted by the encoder, so the hash is deterministic for a given evaluation.
func (e *Evidence) Hash() string {
	// Marshal of these types cannot fail.
	raw, _ := json.Marshal(e)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
