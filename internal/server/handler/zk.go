package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainproof/compliance-copilot/internal/auth"
	"github.com/chainproof/compliance-copilot/internal/evidence"
	"github.com/chainproof/compliance-copilot/internal/transactions"
	"github.com/chainproof/compliance-copilot/internal/zkproof"
)

// txGetter is the subset of transactions.Service used by ZKHandler.
type txGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*transactions.Transaction, error)
}

// ZKHandler proxies proof generation and verification to the external
// proving service, enriching requests with ledger inclusion proofs.
type ZKHandler struct {
	client *zkproof.Client
	txs    txGetter
	ledger *evidence.Ledger
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewZKHandler creates a new ZKHandler.
func NewZKHandler(client *zkproof.Client, txs txGetter, ledger *evidence.Ledger, tokens *auth.TokenIssuer, logger *zap.Logger) *ZKHandler {
	return &ZKHandler{client: client, txs: txs, ledger: ledger, tokens: tokens, logger: logger}
}

func (h *ZKHandler) requireToken() gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return auth.RequireToken(h.tokens)
}

// Register mounts the zk routes on the given router group.
func (h *ZKHandler) Register(rg *gin.RouterGroup) {
	zk := rg.Group("/zk")
	{
		zk.GET("/health", h.Health)
		zk.POST("/prove/:tx_id", h.requireToken(), h.Prove)
		zk.POST("/verify", h.Verify)
		zk.GET("/proofs", h.ListProofs)
		zk.GET("/proofs/:id", h.GetProof)
		zk.DELETE("/proofs/:id", h.requireToken(), h.DeleteProof)
	}
}

// Health handles GET /zk/health — proving service reachability and info.
func (h *ZKHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.client.Health(ctx); err != nil {
		c.JSON(http.StatusOK, gin.H{"available": false, "error": err.Error()})
		return
	}
	info, err := h.client.Info(ctx)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"available": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true, "service": info})
}

// Prove handles POST /zk/prove/:tx_id — generates a compliance proof for a
// screened transaction, including its ledger inclusion proof.
func (h *ZKHandler) Prove(c *gin.Context) {
	id, err := uuid.Parse(c.Param("tx_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	ctx := c.Request.Context()
	tx, err := h.txs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, transactions.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		h.logger.Error("load transaction for proving", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transaction"})
		return
	}
	if tx.EvidenceHash == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "transaction has no compliance evidence"})
		return
	}

	req := zkproof.ProveRequest{
		TransactionData: map[string]any{
			"tx_id":       tx.ID.String(),
			"wallet_from": tx.WalletFrom,
			"wallet_to":   tx.WalletTo,
			"amount":      tx.Amount.String(),
			"currency":    tx.Currency,
		},
		ComplianceEvidence: map[string]any{
			"evidence_hash": tx.EvidenceHash,
			"decision":      tx.Decision,
		},
	}
	if proof, ok := h.ledger.Proof(ctx, tx.EvidenceHash); ok {
		req.MerkleProof = map[string]any{
			"leaf_hash":        proof.LeafHash,
			"leaf_index":       proof.LeafIndex,
			"proof_hashes":     proof.Hashes,
			"proof_directions": proof.Directions,
			"root_hash":        proof.RootHash,
		}
	}

	zkp, err := h.client.GenerateComplianceProof(ctx, req)
	if err != nil {
		h.logger.Error("generate compliance proof", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "proving service failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, zkp)
}

// Verify handles POST /zk/verify — forwards a verification request.
func (h *ZKHandler) Verify(c *gin.Context) {
	var req zkproof.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	result, err := h.client.VerifyProof(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "verification failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListProofs handles GET /zk/proofs.
func (h *ZKHandler) ListProofs(c *gin.Context) {
	proofs, err := h.client.ListProofs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list proofs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"proofs": proofs, "count": len(proofs)})
}

// GetProof handles GET /zk/proofs/:id.
func (h *ZKHandler) GetProof(c *gin.Context) {
	proof, err := h.client.GetProof(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "proof not found"})
		return
	}
	c.JSON(http.StatusOK, proof)
}

// DeleteProof handles DELETE /zk/proofs/:id.
func (h *ZKHandler) DeleteProof(c *gin.Context) {
	if err := h.client.DeleteProof(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to delete proof"})
		return
	}
	c.Status(http.StatusNoContent)
}
