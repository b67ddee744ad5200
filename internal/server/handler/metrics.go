package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ccRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cc_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	ccRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cc_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ccDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cc_compliance_decisions_total",
		Help: "Total compliance decisions by outcome.",
	}, []string{"decision"})

	ccEvidenceLeavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cc_evidence_leaves_total",
		Help: "Total evidence leaves appended to the Merkle ledger.",
	})

	ccAnchorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cc_anchors_total",
		Help: "Total root anchoring attempts by result.",
	}, []string{"result"})

	ccRateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cc_rate_limited_total",
		Help: "Total requests rejected by the per-client rate limiter.",
	}, []string{"path"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		ccRequestsTotal.WithLabelValues(method, path, status).Inc()
		ccRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordDecision records a compliance decision outcome.
func RecordDecision(decision string) {
	ccDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordEvidenceLeaf records an evidence leaf appended to the ledger.
func RecordEvidenceLeaf() {
	ccEvidenceLeavesTotal.Inc()
}

// RecordRateLimited records a request rejected by the rate limiter.
func RecordRateLimited(path string) {
	ccRateLimitedTotal.WithLabelValues(path).Inc()
}

// RecordAnchor records a root anchoring attempt.
func RecordAnchor(success bool) {
	if success {
		ccAnchorsTotal.WithLabelValues("success").Inc()
	} else {
		ccAnchorsTotal.WithLabelValues("failure").Inc()
	}
}
