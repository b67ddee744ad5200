package transactions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chainproof/compliance-copilot/internal/compliance"
	"github.com/google/uuid"
)

// MemoryRepository is an in-memory, thread-safe Repository implementation.
// It backs tests and single-process deployments that run without postgres.
type MemoryRepository struct {
	mu  sync.RWMutex
	txs map[uuid.UUID]*Transaction
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{txs: make(map[uuid.UUID]*Transaction)}
}

// Create implements Repository.
func (r *MemoryRepository) Create(_ context.Context, tx *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx.ID = uuid.New()
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	cp := *tx
	r.txs[tx.ID] = &cp
	return nil
}

// GetByID implements Repository.
func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

// List implements Repository.
func (r *MemoryRepository) List(_ context.Context, f ListFilter) ([]*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*Transaction
	for _, tx := range r.txs {
		if f.Decision != "" && tx.Decision != f.Decision {
			continue
		}
		cp := *tx
		all = append(all, &cp)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if f.Offset >= len(all) {
		return nil, nil
	}
	all = all[f.Offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// UpdateDecision implements Repository.
func (r *MemoryRepository) UpdateDecision(_ context.Context, id uuid.UUID, decision compliance.Decision, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.txs[id]
	if !ok {
		return ErrNotFound
	}
	tx.Decision = decision
	tx.Reason = reason
	tx.UpdatedAt = time.Now().UTC()
	return nil
}

// SetMerkleLeaf implements Repository.
func (r *MemoryRepository) SetMerkleLeaf(_ context.Context, id uuid.UUID, leaf string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.txs[id]
	if !ok {
		return ErrNotFound
	}
	tx.MerkleLeaf = leaf
	tx.UpdatedAt = time.Now().UTC()
	return nil
}

// SetAnchoredRoot implements Repository.
func (r *MemoryRepository) SetAnchoredRoot(_ context.Context, id uuid.UUID, root string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.txs[id]
	if !ok {
		return ErrNotFound
	}
	tx.AnchoredRoot = root
	tx.UpdatedAt = time.Now().UTC()
	return nil
}

// CountByDecision implements Repository.
func (r *MemoryRepository) CountByDecision(_ context.Context) (map[compliance.Decision]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[compliance.Decision]int)
	for _, tx := range r.txs {
		counts[tx.Decision]++
	}
	return counts, nil
}
