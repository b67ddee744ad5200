// Package zkproof is a thin HTTP client for the external proving service,
// which wraps compliance evidence in a zero-knowledge proof so a verifier
// can check a transaction passed the rules without seeing the evidence.
package zkproof

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
)

// Client talks to the proving service over its JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient builds a client for the proving service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ServiceInfo describes the proving backend.
type ServiceInfo struct {
	Service string   `json:"service"`
	Version string   `json:"version"`
	Circuit string   `json:"circuit"`
	Curves  []string `json:"curves,omitempty"`
}

// ProveRequest is the input to compliance proof generation.
type ProveRequest struct {
	TransactionData    map[string]any `json:"transactionData"`
	ComplianceEvidence map[string]any `json:"complianceEvidence"`
	MerkleProof        map[string]any `json:"merkleProof,omitempty"`
}

// ComplianceProof is a generated proof and its public signals.
type ComplianceProof struct {
	ProofID       string          `json:"proofId"`
	Proof         json.RawMessage `json:"proof"`
	PublicSignals []string        `json:"publicSignals"`
	Circuit       string          `json:"circuit,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// VerifyRequest identifies a proof either by its stored ID or by the raw
// proof material. Exactly one form should be set.
type VerifyRequest struct {
	ProofID       string          `json:"proofId,omitempty"`
	Proof         json.RawMessage `json:"proof,omitempty"`
	PublicSignals []string        `json:"publicSignals,omitempty"`
}

// VerifyResult is the proving service's verdict.
type VerifyResult struct {
	Valid   bool   `json:"valid"`
	ProofID string `json:"proofId,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Health pings the proving service.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

// Info fetches circuit and version metadata.
func (c *Client) Info(ctx context.Context) (*ServiceInfo, error) {
	var info ServiceInfo
	if err := c.doJSON(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GenerateComplianceProof asks the service to prove the evidence satisfies
// the compliance circuit.
func (c *Client) GenerateComplianceProof(ctx context.Context, req ProveRequest) (*ComplianceProof, error) {
	var proof ComplianceProof
	if err := c.doJSON(ctx, http.MethodPost, "/prove/compliance", req, &proof); err != nil {
		return nil, err
	}
	return &proof, nil
}

// VerifyProof checks a proof by stored ID or by raw material.
func (c *Client) VerifyProof(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if req.ProofID == "" && len(req.Proof) == 0 {
		return nil, fmt.Errorf("verify request needs either proofId or proof material")
	}
	if req.ProofID != "" && len(req.Proof) != 0 {
		return nil, fmt.Errorf("verify request must not set both proofId and proof material")
	}
	var result VerifyResult
	if err := c.doJSON(ctx, http.MethodPost, "/verify", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListProofs returns stored proofs, newest first.
func (c *Client) ListProofs(ctx context.Context) ([]ComplianceProof, error) {
	var out struct {
		Proofs []ComplianceProof `json:"proofs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/proofs", nil, &out); err != nil {
		return nil, err
	}
	return out.Proofs, nil
}

// GetProof fetches one stored proof by ID.
func (c *Client) GetProof(ctx context.Context, proofID string) (*ComplianceProof, error) {
	var proof ComplianceProof
	if err := c.doJSON(ctx, http.MethodGet, "/proofs/"+url.PathEscape(proofID), nil, &proof); err != nil {
		return nil, err
	}
	return &proof, nil
}

// DeleteProof removes a stored proof.
func (c *Client) DeleteProof(ctx context.Context, proofID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/proofs/"+url.PathEscape(proofID), nil, nil)
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

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("proving service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("proving service %s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("proving service %s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
