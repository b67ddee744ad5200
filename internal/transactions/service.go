// Package transactions implements submission, review, and manual override of
// compliance-checked transactions. Every submission is evaluated by the
// compliance engine and its evidence fingerprint appended to the shared
// evidence ledger; manual overrides append their own audit record so the
// ledger covers the full decision history.
package transactions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chainproof/compliance-copilot/internal/compliance"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// complianceEngine is the rule-evaluation interface consumed by Service,
// satisfied by *compliance.Engine.
type complianceEngine interface {
	Evaluate(ctx context.Context, in compliance.Input) (compliance.Decision, string, *compliance.Evidence)
}

// evidenceLedger is the slice of the evidence ledger Service needs.
type evidenceLedger interface {
	Append(ctx context.Context, evidenceHash string) string
	Root(ctx context.Context) string
}

// Service implements transaction business logic.
type Service struct {
	repo   Repository
	engine complianceEngine
	ledger evidenceLedger
	logger *zap.Logger
}

// NewService creates a transaction Service.
func NewService(repo Repository, engine complianceEngine, ledger evidenceLedger, logger *zap.Logger) *Service {
	return &Service{repo: repo, engine: engine, ledger: ledger, logger: logger}
}

// Submit evaluates a transaction, persists it with its decision, and appends
// the compliance evidence fingerprint to the evidence ledger. The stored
// MerkleLeaf equals the ledger's leaf hash for that fingerprint.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Transaction, error) {
	if req.WalletFrom == "" || req.WalletTo == "" {
		return nil, fmt.Errorf("wallet_from and wallet_to are required")
	}
	if req.Amount.IsZero() || req.Amount.IsNegative() {
		return nil, fmt.Errorf("amount must be greater than 0")
	}
	if req.Currency == "" {
		req.Currency = "ETH"
	}

	decision, reason, ev := s.engine.Evaluate(ctx, compliance.Input{
		WalletFrom: req.WalletFrom,
		WalletTo:   req.WalletTo,
		Amount:     req.Amount,
		Currency:   req.Currency,
		KYCProofID: req.KYCProofID,
		Metadata: map[string]string{
			"source":  "api_submission",
			"tx_hash": req.TxHash,
			"memo":    req.Memo,
		},
	})
	evidenceHash := ev.Hash()

	tx := &Transaction{
		WalletFrom:   strings.ToLower(req.WalletFrom),
		WalletTo:     strings.ToLower(req.WalletTo),
		Amount:       req.Amount,
		Currency:     req.Currency,
		TxHash:       req.TxHash,
		Memo:         req.Memo,
		KYCProofID:   req.KYCProofID,
		Decision:     decision,
		Reason:       reason,
		EvidenceHash: evidenceHash,
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	leaf := s.ledger.Append(ctx, evidenceHash)
	tx.MerkleLeaf = leaf
	if err := s.repo.SetMerkleLeaf(ctx, tx.ID, leaf); err != nil {
		// The leaf is in the ledger regardless; surface the storage failure.
		return nil, fmt.Errorf("record merkle leaf: %w", err)
	}

	s.logger.Info("transaction submitted",
		zap.String("tx_id", tx.ID.String()),
		zap.String("decision", string(decision)),
		zap.String("evidence_hash", evidenceHash),
	)
	return tx, nil
}

// Get retrieves a transaction by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns transactions matching the filter, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*Transaction, error) {
	return s.repo.List(ctx, f)
}

// ReviewQueue returns transactions held for manual review.
func (s *Service) ReviewQueue(ctx context.Context, limit, offset int) ([]*Transaction, error) {
	return s.repo.List(ctx, ListFilter{
		Decision: compliance.DecisionHold,
		Limit:    limit,
		Offset:   offset,
	})
}

// Override replaces a transaction's decision with a reviewer's verdict. The
// override itself becomes part of the audit trail: its record is hashed and
// appended to the evidence ledger like any other compliance evidence.
func (s *Service) Override(ctx context.Context, id uuid.UUID, decision compliance.Decision, reviewer, note string) (*Transaction, error) {
	if !decision.Valid() || decision == compliance.DecisionPending {
		return nil, fmt.Errorf("invalid override decision %q", decision)
	}
	if reviewer == "" {
		return nil, fmt.Errorf("reviewer is required")
	}

	tx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	record := OverrideRecord{
		TxID:         tx.ID,
		FromDecision: tx.Decision,
		ToDecision:   decision,
		Reviewer:     reviewer,
		Note:         note,
		Timestamp:    time.Now().UTC(),
	}
	raw, _ := json.Marshal(record)
	sum := sha256.Sum256(raw)
	auditHash := hex.EncodeToString(sum[:])

	reason := fmt.Sprintf("manual override by %s: %s -> %s", reviewer, tx.Decision, decision)
	if err := s.repo.UpdateDecision(ctx, id, decision, reason); err != nil {
		return nil, err
	}

	s.ledger.Append(ctx, auditHash)
	s.logger.Info("decision overridden",
		zap.String("tx_id", id.String()),
		zap.String("from", string(record.FromDecision)),
		zap.String("to", string(decision)),
		zap.String("reviewer", reviewer),
		zap.String("audit_hash", auditHash),
	)

	return s.repo.GetByID(ctx, id)
}

// MarkAnchored stamps root on every PASS or HOLD transaction that has
// evidence in the ledger but no anchored root yet. Returns how many
// transactions were stamped.
func (s *Service) MarkAnchored(ctx context.Context, root string) (int, error) {
	stamped := 0
	for _, d := range []compliance.Decision{compliance.DecisionPass, compliance.DecisionHold} {
		txs, err := s.repo.List(ctx, ListFilter{Decision: d, Limit: 1000})
		if err != nil {
			return stamped, fmt.Errorf("list %s transactions: %w", d, err)
		}
		for _, tx := range txs {
			if tx.MerkleLeaf == "" || tx.AnchoredRoot != "" {
				continue
			}
			if err := s.repo.SetAnchoredRoot(ctx, tx.ID, root); err != nil {
				return stamped, fmt.Errorf("stamp %s: %w", tx.ID, err)
			}
			stamped++
		}
	}

	s.logger.Info("transactions stamped with anchored root",
		zap.Int("count", stamped),
		zap.String("root", root),
	)
	return stamped, nil
}

// Stats returns per-decision transaction counts plus the current ledger root.
func (s *Service) Stats(ctx context.Context) (map[compliance.Decision]int, string, error) {
	counts, err := s.repo.CountByDecision(ctx)
	if err != nil {
		return nil, "", err
	}
	return counts, s.ledger.Root(ctx), nil
}
