package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chainproof/compliance-copilot/internal/anchor"
	"github.com/chainproof/compliance-copilot/internal/auth"
	"github.com/chainproof/compliance-copilot/internal/evidence"
)

// anchorMarker stamps transactions once their evidence root is on chain.
type anchorMarker interface {
	MarkAnchored(ctx context.Context, root string) (int, error)
}

// AnchorHandler exposes root anchoring and anchor history.
type AnchorHandler struct {
	anchorer anchor.Anchorer
	ledger   *evidence.Ledger
	marker   anchorMarker
	tokens   *auth.TokenIssuer
	logger   *zap.Logger
}

// NewAnchorHandler creates a new AnchorHandler.
func NewAnchorHandler(a anchor.Anchorer, ledger *evidence.Ledger, marker anchorMarker, tokens *auth.TokenIssuer, logger *zap.Logger) *AnchorHandler {
	return &AnchorHandler{anchorer: a, ledger: ledger, marker: marker, tokens: tokens, logger: logger}
}

func (h *AnchorHandler) requireToken() gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return auth.RequireToken(h.tokens)
}

// Register mounts the anchor routes on the given router group.
func (h *AnchorHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/anchor")
	{
		a.POST("/root", h.requireToken(), h.AnchorRoot)
		a.GET("/events", h.Events)
		a.GET("/health", h.Health)
	}
}

type anchorRequest struct {
	Root string `json:"root"`
}

// AnchorRoot handles POST /anchor/root — publishes a Merkle root on chain.
// When the body omits the root, the current ledger root is anchored and all
// decided transactions under it are stamped.
func (h *AnchorHandler) AnchorRoot(c *gin.Context) {
	var req anchorRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	root := req.Root
	fromLedger := root == ""
	if fromLedger {
		root = h.ledger.Root(ctx)
	}

	result, err := h.anchorer.AnchorRoot(ctx, root)
	if err != nil {
		RecordAnchor(false)
		h.logger.Error("anchor root", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "anchoring failed: " + err.Error()})
		return
	}
	RecordAnchor(true)

	stamped := 0
	if fromLedger && h.marker != nil {
		if stamped, err = h.marker.MarkAnchored(ctx, result.Root); err != nil {
			h.logger.Warn("stamp anchored transactions", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"result":               result,
		"transactions_stamped": stamped,
	})
}

// Events handles GET /anchor/events — recent on-chain anchoring events.
func (h *AnchorHandler) Events(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.anchorer.Events(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("anchor events", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to read anchor events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// Health handles GET /anchor/health — anchoring backend status.
func (h *AnchorHandler) Health(c *gin.Context) {
	health, err := h.anchorer.Health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, health)
}
