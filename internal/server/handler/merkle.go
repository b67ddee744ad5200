// Package handler contains the gin HTTP handlers for the compliance copilot
// API. Each handler owns a route group and registers itself on the shared
// /api/v1 router via Register.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chainproof/compliance-copilot/internal/evidence"
	"github.com/chainproof/compliance-copilot/internal/merkle"
)

// MerkleHandler exposes the evidence ledger's tree state and proofs.
type MerkleHandler struct {
	ledger *evidence.Ledger
	logger *zap.Logger
}

// NewMerkleHandler creates a new MerkleHandler.
func NewMerkleHandler(ledger *evidence.Ledger, logger *zap.Logger) *MerkleHandler {
	return &MerkleHandler{ledger: ledger, logger: logger}
}

// Register mounts the merkle routes on the given router group.
func (h *MerkleHandler) Register(rg *gin.RouterGroup) {
	m := rg.Group("/merkle")
	{
		m.GET("/root", h.Root)
		m.GET("/info", h.Info)
		m.GET("/proof", h.ProofByHash)
		m.GET("/proof/:index", h.ProofByIndex)
		m.POST("/verify", h.Verify)
		m.GET("/export", h.Export)
	}
}

// Root handles GET /merkle/root — the current root and leaf count.
func (h *MerkleHandler) Root(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"root_hash":    h.ledger.Root(ctx),
		"total_leaves": h.ledger.Len(ctx),
	})
}

// Info handles GET /merkle/info — tree summary statistics.
func (h *MerkleHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Info(c.Request.Context()))
}

// ProofByHash handles GET /merkle/proof?evidence_hash=… — an inclusion
// proof for the given evidence fingerprint.
func (h *MerkleHandler) ProofByHash(c *gin.Context) {
	evidenceHash := c.Query("evidence_hash")
	if evidenceHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "evidence_hash query parameter required"})
		return
	}

	proof, ok := h.ledger.Proof(c.Request.Context(), evidenceHash)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "evidence hash not found in ledger"})
		return
	}
	c.JSON(http.StatusOK, proof)
}

// ProofByIndex handles GET /merkle/proof/:index.
func (h *MerkleHandler) ProofByIndex(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a non-negative integer"})
		return
	}

	proof, ok := h.ledger.ProofByIndex(c.Request.Context(), idx)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "leaf index out of range"})
		return
	}
	c.JSON(http.StatusOK, proof)
}

type verifyRequest struct {
	Proof        *merkle.Proof `json:"proof" binding:"required"`
	EvidenceData string        `json:"evidence_data"`
	ExpectedRoot string        `json:"expected_root"`
}

// Verify handles POST /merkle/verify — checks a proof, optionally binding
// it to raw evidence data and an expected root.
func (h *MerkleHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	root := req.ExpectedRoot
	if root == "" {
		root = h.ledger.Root(ctx)
	}

	var valid bool
	if req.EvidenceData != "" {
		valid = merkle.VerifyEvidenceInclusion(req.EvidenceData, req.Proof, root)
	} else {
		valid = req.Proof.Verify() && req.Proof.RootHash == root
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":         valid,
		"verified_root": root,
	})
}

// Export handles GET /merkle/export — the full tree state for offline
// verification or migration.
func (h *MerkleHandler) Export(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Export(c.Request.Context()))
}
