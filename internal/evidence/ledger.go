// Package evidence provides the process-lifetime evidence ledger: a single
// Merkle tree of compliance evidence fingerprints shared by all request
// handlers. The ledger is constructed once at service start, grows for the
// life of the process, and is never reset.
//
// The underlying merkle.Tree is not safe for concurrent use; the ledger
// serialises every mutation and every cache-dependent read behind one
// RWMutex, so handlers can call it freely from concurrent requests.
package evidence

import (
	"context"
	"sync"

	"github.com/chainproof/compliance-copilot/internal/merkle"
	"go.uber.org/zap"
)

// MetricsRecorder is an optional callback invoked once per appended leaf.
type MetricsRecorder func()

// Ledger is the injected, shared evidence tree. There is exactly one per
// process; it is passed to every component that appends or proves evidence
// rather than reached through a package-level singleton.
type Ledger struct {
	mu       sync.RWMutex
	tree     *merkle.Tree
	onAppend MetricsRecorder
	logger   *zap.Logger
}

// NewLedger creates an empty Ledger.
func NewLedger(logger *zap.Logger) *Ledger {
	return &Ledger{tree: merkle.New(), logger: logger}
}

// SetMetricsRecorder configures the per-append metrics callback.
func (l *Ledger) SetMetricsRecorder(fn MetricsRecorder) {
	l.onAppend = fn
}

// Append adds an evidence fingerprint as a new leaf and returns the computed
// leaf hash. Append never fails; the value is opaque.
func (l *Ledger) Append(_ context.Context, evidenceHash string) string {
	l.mu.Lock()
	leaf := l.tree.AddLeaf(evidenceHash)
	l.mu.Unlock()

	if l.onAppend != nil {
		l.onAppend()
	}
	l.logger.Debug("evidence appended",
		zap.String("leaf_hash", leaf),
		zap.Int("leaves", l.Len(context.Background())),
	)
	return leaf
}

// Root returns the current root hash, rebuilding the tree if it is stale.
func (l *Ledger) Root(_ context.Context) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.Root()
}

// Len returns the number of leaves in the ledger.
func (l *Ledger) Len(_ context.Context) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Len()
}

// Proof generates an inclusion proof for a raw evidence value, first match
// wins. Absent when the value is not in the ledger.
func (l *Ledger) Proof(_ context.Context, evidenceHash string) (*merkle.Proof, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.Proof(evidenceHash)
}

// ProofByIndex generates an inclusion proof for the leaf at index i.
func (l *Ledger) ProofByIndex(_ context.Context, i int) (*merkle.Proof, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.ProofByIndex(i)
}

// VerifyProof checks a proof against the ledger's current root.
func (l *Ledger) VerifyProof(_ context.Context, p *merkle.Proof) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.VerifyProof(p)
}

// Info returns summary statistics for the current tree.
func (l *Ledger) Info(_ context.Context) merkle.Info {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.GetInfo()
}

// Export serialises the current tree for backup or offline audit.
func (l *Ledger) Export(_ context.Context) *merkle.Export {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.Serialize()
}

// ExportProofs dumps an inclusion proof for every leaf.
func (l *Ledger) ExportProofs(_ context.Context) []merkle.LeafProof {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.ExportProofs()
}
