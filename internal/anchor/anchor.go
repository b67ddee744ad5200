// Package anchor publishes evidence ledger roots to an external chain so
// that historical compliance state can be proven against an immutable
// reference. The on-chain contract is a thin event emitter; everything the
// service needs back out is read from RootAnchored logs.
package anchor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Anchorer publishes Merkle roots and reads back previously anchored ones.
type Anchorer interface {
	// AnchorRoot submits the given root and blocks until the transaction
	// is mined (or the context is cancelled).
	AnchorRoot(ctx context.Context, root string) (*Result, error)
	// Events returns the most recent anchoring events, newest first.
	Events(ctx context.Context, limit int) ([]Event, error)
	// Health reports connectivity and signer status.
	Health(ctx context.Context) (*Health, error)
}

// Result describes a mined anchoring transaction.
type Result struct {
	Root        string    `json:"root"`
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	GasUsed     uint64    `json:"gas_used"`
	AnchoredAt  time.Time `json:"anchored_at"`
}

// Event is a RootAnchored log decoded from the chain.
type Event struct {
	Root        string    `json:"root"`
	AnchoredBy  string    `json:"anchored_by"`
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	Timestamp   time.Time `json:"timestamp"`
}

// Health is the anchoring backend status surfaced on the API.
type Health struct {
	Connected       bool   `json:"connected"`
	ChainID         string `json:"chain_id,omitempty"`
	LatestBlock     uint64 `json:"latest_block,omitempty"`
	Signer          string `json:"signer,omitempty"`
	BalanceWei      string `json:"balance_wei,omitempty"`
	ContractVersion string `json:"contract_version,omitempty"`
	ContractOwner   string `json:"contract_owner,omitempty"`
	Error           string `json:"error,omitempty"`
}

var rootPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

// NormalizeRoot accepts a 64-hex-char Merkle root, with or without a 0x
// prefix, and returns the canonical 0x-prefixed lowercase form.
func NormalizeRoot(root string) (string, error) {
	r := strings.ToLower(strings.TrimSpace(root))
	if !strings.HasPrefix(r, "0x") {
		r = "0x" + r
	}
	if !rootPattern.MatchString(r) {
		return "", fmt.Errorf("invalid merkle root %q: want 32 bytes of hex", root)
	}
	return r, nil
}
