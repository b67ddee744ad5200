package transactions

import (
	"errors"
	"time"

	"github.com/chainproof/compliance-copilot/internal/compliance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a transaction lookup finds no matching record.
var ErrNotFound = errors.New("transaction not found")

// Transaction is a compliance-checked transfer. EvidenceHash is the SHA-256
// fingerprint of the compliance evidence; MerkleLeaf is the hash of the leaf
// that fingerprint occupies in the evidence ledger; AnchoredRoot is set once
// a root covering the leaf has been anchored on chain.
type Transaction struct {
	ID           uuid.UUID           `json:"tx_id"`
	WalletFrom   string              `json:"wallet_from"`
	WalletTo     string              `json:"wallet_to"`
	Amount       decimal.Decimal     `json:"amount"`
	Currency     string              `json:"currency"`
	TxHash       string              `json:"tx_hash,omitempty"`
	Memo         string              `json:"memo,omitempty"`
	KYCProofID   string              `json:"kyc_proof_id,omitempty"`
	Decision     compliance.Decision `json:"decision"`
	Reason       string              `json:"reason,omitempty"`
	EvidenceHash string              `json:"evidence_hash,omitempty"`
	MerkleLeaf   string              `json:"merkle_leaf,omitempty"`
	AnchoredRoot string              `json:"anchored_root,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// SubmitRequest is the input to Service.Submit.
type SubmitRequest struct {
	WalletFrom string          `json:"wallet_from"`
	WalletTo   string          `json:"wallet_to"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	TxHash     string          `json:"tx_hash"`
	Memo       string          `json:"memo"`
	KYCProofID string          `json:"kyc_proof_id"`
}

// ListFilter narrows a List call. A zero filter lists everything, newest
// first, capped at the repository's default limit.
type ListFilter struct {
	Decision compliance.Decision // empty = all decisions
	Limit    int
	Offset   int
}

// OverrideRecord is the audit payload hashed into the evidence ledger when a
// reviewer manually overrides a compliance decision.
type OverrideRecord struct {
	TxID         uuid.UUID           `json:"tx_id"`
	FromDecision compliance.Decision `json:"from_decision"`
	ToDecision   compliance.Decision `json:"to_decision"`
	Reviewer     string              `json:"reviewer"`
	Note         string              `json:"note,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
}
