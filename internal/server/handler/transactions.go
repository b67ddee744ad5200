package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainproof/compliance-copilot/internal/auth"
	"github.com/chainproof/compliance-copilot/internal/compliance"
	"github.com/chainproof/compliance-copilot/internal/transactions"
)

// txService is the subset of transactions.Service used by TransactionHandler.
type txService interface {
	Submit(ctx context.Context, req transactions.SubmitRequest) (*transactions.Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (*transactions.Transaction, error)
	List(ctx context.Context, f transactions.ListFilter) ([]*transactions.Transaction, error)
	ReviewQueue(ctx context.Context, limit, offset int) ([]*transactions.Transaction, error)
	Override(ctx context.Context, id uuid.UUID, decision compliance.Decision, reviewer, note string) (*transactions.Transaction, error)
	Stats(ctx context.Context) (map[compliance.Decision]int, string, error)
}

// TransactionHandler handles transaction screening and review endpoints.
type TransactionHandler struct {
	svc    txService
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(svc txService, tokens *auth.TokenIssuer, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{svc: svc, tokens: tokens, logger: logger}
}

// requireToken returns the auth middleware when auth is configured, or a
// no-op middleware otherwise.
func (h *TransactionHandler) requireToken() gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return auth.RequireToken(h.tokens)
}

// Register mounts the transaction routes on the given router group.
func (h *TransactionHandler) Register(rg *gin.RouterGroup) {
	tx := rg.Group("/tx")
	{
		tx.POST("/submit", h.Submit)
		tx.GET("", h.List)
		tx.GET("/stats", h.Stats)
		tx.GET("/review", h.requireToken(), h.ReviewQueue)
		tx.GET("/:id", h.Get)
		tx.POST("/:id/override", h.requireToken(), h.Override)
	}
}

// Submit handles POST /tx/submit — screens a transaction and records its
// compliance evidence.
func (h *TransactionHandler) Submit(c *gin.Context) {
	var req transactions.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	tx, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	RecordDecision(string(tx.Decision))
	c.JSON(http.StatusCreated, tx)
}

// Get handles GET /tx/:id.
func (h *TransactionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	tx, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, transactions.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		h.logger.Error("get transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get transaction"})
		return
	}
	c.JSON(http.StatusOK, tx)
}

// List handles GET /tx — optionally filtered by ?decision=.
func (h *TransactionHandler) List(c *gin.Context) {
	limit, offset := pagination(c)

	filter := transactions.ListFilter{Limit: limit, Offset: offset}
	if d := c.Query("decision"); d != "" {
		decision := compliance.Decision(d)
		if !decision.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown decision filter"})
			return
		}
		filter.Decision = decision
	}

	txs, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("list transactions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

// ReviewQueue handles GET /tx/review — transactions held for manual review.
func (h *TransactionHandler) ReviewQueue(c *gin.Context) {
	limit, offset := pagination(c)

	txs, err := h.svc.ReviewQueue(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("review queue", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load review queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

type overrideRequest struct {
	Decision compliance.Decision `json:"decision" binding:"required"`
	Note     string              `json:"note"`
}

// Override handles POST /tx/:id/override — a reviewer replaces the
// automated decision. The reviewer identity comes from the session token.
func (h *TransactionHandler) Override(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	reviewer := "anonymous"
	if claims, ok := auth.ClaimsFromContext(c); ok {
		reviewer = claims.Email
	}

	tx, err := h.svc.Override(c.Request.Context(), id, req.Decision, reviewer, req.Note)
	if err != nil {
		if errors.Is(err, transactions.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tx)
}

// Stats handles GET /tx/stats — decision counts and the current ledger root.
func (h *TransactionHandler) Stats(c *gin.Context) {
	counts, root, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("transaction stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"decisions":   counts,
		"ledger_root": root,
	})
}

// pagination reads limit/offset query parameters with sane bounds.
func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
