package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainproof/compliance-copilot/internal/compliance"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// defaultListLimit caps List calls that do not specify a limit.
const defaultListLimit = 50

// Repository is the storage interface consumed by Service. Both
// PostgresRepository and MemoryRepository implement it.
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	List(ctx context.Context, f ListFilter) ([]*Transaction, error)
	UpdateDecision(ctx context.Context, id uuid.UUID, decision compliance.Decision, reason string) error
	SetMerkleLeaf(ctx context.Context, id uuid.UUID, leaf string) error
	SetAnchoredRoot(ctx context.Context, id uuid.UUID, root string) error
	CountByDecision(ctx context.Context) (map[compliance.Decision]int, error)
}

// PostgresRepository persists transactions to PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a PostgresRepository backed by the pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new transaction. Sets ID, CreatedAt, UpdatedAt.
func (r *PostgresRepository) Create(ctx context.Context, tx *Transaction) error {
	tx.ID = uuid.New()
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	q := `
		INSERT INTO transactions
			(id, wallet_from, wallet_to, amount, currency, tx_hash, memo, kyc_proof_id,
			 decision, reason, evidence_hash, merkle_leaf, anchored_root, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.db.Exec(ctx, q,
		tx.ID, tx.WalletFrom, tx.WalletTo, tx.Amount.String(), tx.Currency,
		tx.TxHash, tx.Memo, tx.KYCProofID,
		string(tx.Decision), tx.Reason, tx.EvidenceHash, tx.MerkleLeaf, tx.AnchoredRoot,
		tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	q := selectColumns + ` FROM transactions WHERE id = $1`
	tx, err := scanTransaction(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// List returns transactions newest first, optionally filtered by decision.
func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]*Transaction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := selectColumns + ` FROM transactions`
	args := []any{}
	if f.Decision != "" {
		q += ` WHERE decision = $1`
		args = append(args, string(f.Decision))
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, f.Offset)

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// UpdateDecision sets a new decision and reason on a transaction.
func (r *PostgresRepository) UpdateDecision(ctx context.Context, id uuid.UUID, decision compliance.Decision, reason string) error {
	q := `UPDATE transactions SET decision = $2, reason = $3, updated_at = $4 WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, string(decision), reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update decision: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMerkleLeaf records the evidence ledger leaf hash for a transaction.
func (r *PostgresRepository) SetMerkleLeaf(ctx context.Context, id uuid.UUID, leaf string) error {
	q := `UPDATE transactions SET merkle_leaf = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, leaf, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set merkle leaf: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAnchoredRoot records the on-chain anchored root for a transaction.
func (r *PostgresRepository) SetAnchoredRoot(ctx context.Context, id uuid.UUID, root string) error {
	q := `UPDATE transactions SET anchored_root = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, root, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set anchored root: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByDecision returns the number of transactions per decision.
func (r *PostgresRepository) CountByDecision(ctx context.Context) (map[compliance.Decision]int, error) {
	rows, err := r.db.Query(ctx, `SELECT decision, COUNT(*) FROM transactions GROUP BY decision`)
	if err != nil {
		return nil, fmt.Errorf("count by decision: %w", err)
	}
	defer rows.Close()

	counts := make(map[compliance.Decision]int)
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[compliance.Decision(d)] = n
	}
	return counts, rows.Err()
}

const selectColumns = `
	SELECT id, wallet_from, wallet_to, amount, currency, tx_hash, memo, kyc_proof_id,
	       decision, reason, evidence_hash, merkle_leaf, anchored_root, created_at, updated_at`

// scanTransaction reads one row into a Transaction. Amounts are stored as
// NUMERIC and scanned through their string form.
func scanTransaction(row pgx.Row) (*Transaction, error) {
	var tx Transaction
	var amount, decision string
	if err := row.Scan(
		&tx.ID, &tx.WalletFrom, &tx.WalletTo, &amount, &tx.Currency,
		&tx.TxHash, &tx.Memo, &tx.KYCProofID,
		&decision, &tx.Reason, &tx.EvidenceHash, &tx.MerkleLeaf, &tx.AnchoredRoot,
		&tx.CreatedAt, &tx.UpdatedAt,
	); err != nil {
		return nil, err
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	tx.Amount = amt
	tx.Decision = compliance.Decision(decision)
	return &tx, nil
}
