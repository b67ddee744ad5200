// Package client provides the Go SDK for the compliance copilot API:
// submitting transactions for screening, fetching Merkle proofs, and
// anchoring evidence roots.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SubmitTransactionRequest is the payload for SubmitTransaction.
type SubmitTransactionRequest struct {
	WalletFrom string          `json:"wallet_from"`
	WalletTo   string          `json:"wallet_to"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency,omitempty"`
	TxHash     string          `json:"tx_hash,omitempty"`
	Memo       string          `json:"memo,omitempty"`
	KYCProofID string          `json:"kyc_proof_id,omitempty"`
}

// Transaction is a screened transaction record returned by the API.
type Transaction struct {
	TxID         string          `json:"tx_id"`
	WalletFrom   string          `json:"wallet_from"`
	WalletTo     string          `json:"wallet_to"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Decision     string          `json:"decision"`
	Reason       string          `json:"reason,omitempty"`
	EvidenceHash string          `json:"evidence_hash,omitempty"`
	MerkleLeaf   string          `json:"merkle_leaf,omitempty"`
	AnchoredRoot string          `json:"anchored_root,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// MerkleRootResult is the ledger's current root and size.
type MerkleRootResult struct {
	RootHash    string `json:"root_hash"`
	TotalLeaves int    `json:"total_leaves"`
}

// Proof is an inclusion proof as served by the API.
type Proof struct {
	LeafHash        string   `json:"leaf_hash"`
	LeafIndex       int      `json:"leaf_index"`
	ProofHashes     []string `json:"proof_hashes"`
	ProofDirections []string `json:"proof_directions"`
	RootHash        string   `json:"root_hash"`
}

// VerifyResult is the outcome of a server-side proof verification.
type VerifyResult struct {
	Valid        bool   `json:"valid"`
	VerifiedRoot string `json:"verified_root"`
}

// AnchorOutcome is the response to an anchor request.
type AnchorOutcome struct {
	Result struct {
		Root        string    `json:"root"`
		TxHash      string    `json:"tx_hash"`
		BlockNumber uint64    `json:"block_number"`
		AnchoredAt  time.Time `json:"anchored_at"`
	} `json:"result"`
	TransactionsStamped int `json:"transactions_stamped"`
}

// Client is the copilot SDK entry point.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBearerToken sets a session token for privileged endpoints.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.bearerToken = token }
}

// WithTimeout sets the request timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client for the copilot API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a session token and stores it on the
// client for subsequent privileged calls.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return "", err
	}
	c.bearerToken = out.Token
	return out.Token, nil
}

// SubmitTransaction screens a transaction and returns its decision record.
func (c *Client) SubmitTransaction(ctx context.Context, req SubmitTransactionRequest) (*Transaction, error) {
	var tx Transaction
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/tx/submit", req, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetTransaction fetches a screened transaction by ID.
func (c *Client) GetTransaction(ctx context.Context, txID string) (*Transaction, error) {
	var tx Transaction
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/tx/"+url.PathEscape(txID), nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// MerkleRoot returns the ledger's current root hash and leaf count.
func (c *Client) MerkleRoot(ctx context.Context) (*MerkleRootResult, error) {
	var out MerkleRootResult
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/merkle/root", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MerkleProof fetches an inclusion proof for an evidence hash.
func (c *Client) MerkleProof(ctx context.Context, evidenceHash string) (*Proof, error) {
	var proof Proof
	path := "/api/v1/merkle/proof?evidence_hash=" + url.QueryEscape(evidenceHash)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &proof); err != nil {
		return nil, err
	}
	return &proof, nil
}

// VerifyEvidence checks a proof server-side, binding it to evidence data.
func (c *Client) VerifyEvidence(ctx context.Context, evidenceData string, proof *Proof, expectedRoot string) (*VerifyResult, error) {
	var out VerifyResult
	body := map[string]any{
		"proof":         proof,
		"evidence_data": evidenceData,
		"expected_root": expectedRoot,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/merkle/verify", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnchorRoot publishes a root on chain. An empty root anchors the current
// ledger root and stamps the transactions beneath it.
func (c *Client) AnchorRoot(ctx context.Context, root string) (*AnchorOutcome, error) {
	var out AnchorOutcome
	body := map[string]string{}
	if root != "" {
		body["root"] = root
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/anchor/root", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnchorHealth reports the anchoring backend status.
func (c *Client) AnchorHealth(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/anchor/health", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
