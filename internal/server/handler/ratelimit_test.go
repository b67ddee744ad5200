package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chainproof/compliance-copilot/internal/server/handler"
)

func newThrottledRouter(cfg handler.RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	rl := handler.NewRateLimiter(cfg, zap.NewNop())
	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func pingFrom(router *gin.Engine, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterThrottlesPerClient(t *testing.T) {
	router := newThrottledRouter(handler.RateLimitConfig{RequestsPerSecond: 1, Burst: 2})

	for i := 0; i < 2; i++ {
		if w := pingFrom(router, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200", i, w.Code)
		}
	}

	w := pingFrom(router, "10.0.0.1:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("burst exhausted: got %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("throttled response missing Retry-After header")
	}

	// Each client gets its own bucket.
	if w := pingFrom(router, "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("second client: got %d, want 200", w.Code)
	}
}

func TestRateLimiterDefaultBurst(t *testing.T) {
	// Burst left zero defaults to twice the steady rate.
	router := newThrottledRouter(handler.RateLimitConfig{RequestsPerSecond: 1})

	for i := 0; i < 2; i++ {
		if w := pingFrom(router, "10.0.0.3:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200", i, w.Code)
		}
	}
	if w := pingFrom(router, "10.0.0.3:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429 once default burst is spent", w.Code)
	}
}
