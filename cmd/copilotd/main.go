// copilotd is the compliance copilot API server: it screens transactions,
// maintains the Merkle evidence ledger, and anchors ledger roots on chain.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chainproof/compliance-copilot/internal/anchor"
	"github.com/chainproof/compliance-copilot/internal/auth"
	"github.com/chainproof/compliance-copilot/internal/compliance"
	"github.com/chainproof/compliance-copilot/internal/evidence"
	"github.com/chainproof/compliance-copilot/internal/server/handler"
	"github.com/chainproof/compliance-copilot/internal/transactions"
	"github.com/chainproof/compliance-copilot/internal/users"
	"github.com/chainproof/compliance-copilot/internal/zkproof"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("copilotd exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("copilot")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.base_url", "")
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.rate_limit_rps", 20)
	viper.SetDefault("server.rate_limit_burst", 0)
	viper.SetDefault("database.url", "")
	viper.SetDefault("auth.secret", "")
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("compliance.amount_threshold", "1000")
	viper.SetDefault("compliance.velocity_threshold", "500")
	viper.SetDefault("compliance.kyc_required", true)
	viper.SetDefault("compliance.max_risk_score", 100)
	viper.SetDefault("anchor.rpc_url", "")
	viper.SetDefault("anchor.contract_address", "")
	viper.SetDefault("anchor.private_key", "")
	viper.SetDefault("anchor.auto_interval", "")
	viper.SetDefault("zk.service_url", "http://localhost:3001")
	viper.SetDefault("zk.timeout", "30s")

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	httpPort := viper.GetInt("server.port")
	baseURL := viper.GetString("server.base_url")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", httpPort)
	}

	// ── Database (optional) ──────────────────────────────────────────────────
	var db *pgxpool.Pool
	if dbURL := viper.GetString("database.url"); dbURL != "" {
		var err error
		db, err = pgxpool.New(context.Background(), dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer db.Close()

		if err := db.Ping(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")
	} else {
		logger.Warn("no database configured, using in-memory repositories")
	}

	// ── Evidence ledger + compliance engine ──────────────────────────────────
	ledger := evidence.NewLedger(logger)
	ledger.SetMetricsRecorder(handler.RecordEvidenceLeaf)

	engineCfg := compliance.DefaultConfig()
	engineCfg.AmountThreshold = decimalSetting("compliance.amount_threshold", engineCfg.AmountThreshold)
	engineCfg.VelocityThreshold = decimalSetting("compliance.velocity_threshold", engineCfg.VelocityThreshold)
	engineCfg.KYCRequired = viper.GetBool("compliance.kyc_required")
	engineCfg.MaxRiskScore = viper.GetInt("compliance.max_risk_score")
	engine := compliance.NewEngine(engineCfg, logger)

	startCtx := context.Background()
	logger.Info("evidence ledger ready",
		zap.Int("leaves", ledger.Len(startCtx)),
		zap.String("root", ledger.Root(startCtx)),
	)

	// ── Repositories + services ──────────────────────────────────────────────
	var txRepo transactions.Repository
	var userRepo users.Repository
	if db != nil {
		txRepo = transactions.NewPostgresRepository(db)
		userRepo = users.NewPostgresRepository(db)
	} else {
		txRepo = transactions.NewMemoryRepository()
		userRepo = users.NewMemoryRepository()
	}

	txSvc := transactions.NewService(txRepo, engine, ledger, logger)
	userSvc := users.NewService(userRepo, logger)

	// ── Auth ─────────────────────────────────────────────────────────────────
	secret := viper.GetString("auth.secret")
	var tokens *auth.TokenIssuer
	if secret != "" {
		ttl, _ := time.ParseDuration(viper.GetString("auth.token_ttl"))
		tokens = auth.NewTokenIssuer([]byte(secret), baseURL, ttl)
	} else {
		logger.Warn("auth.secret not set — privileged routes are unprotected; do not use in production")
	}

	// ── Anchorer ─────────────────────────────────────────────────────────────
	var anchorer anchor.Anchorer
	if rpcURL := viper.GetString("anchor.rpc_url"); rpcURL != "" {
		ethAnchorer, err := anchor.NewEthereumAnchorer(startCtx, anchor.EthereumConfig{
			RPCURL:          rpcURL,
			ContractAddress: viper.GetString("anchor.contract_address"),
			PrivateKeyHex:   viper.GetString("anchor.private_key"),
		}, logger)
		if err != nil {
			return fmt.Errorf("ethereum anchorer: %w", err)
		}
		defer ethAnchorer.Close()
		anchorer = ethAnchorer
	} else {
		anchorer = anchor.NewNoopAnchorer(logger)
		logger.Info("anchorer: noop (set anchor.rpc_url to enable on-chain anchoring)")
	}

	// ── ZK proving client ────────────────────────────────────────────────────
	zkTimeout, _ := time.ParseDuration(viper.GetString("zk.timeout"))
	if zkTimeout == 0 {
		zkTimeout = 30 * time.Second
	}
	zkClient := zkproof.NewClient(viper.GetString("zk.service_url"), zkproof.WithTimeout(zkTimeout))

	// ── Handlers ─────────────────────────────────────────────────────────────
	txHandler := handler.NewTransactionHandler(txSvc, tokens, logger)
	merkleHandler := handler.NewMerkleHandler(ledger, logger)
	anchorHandler := handler.NewAnchorHandler(anchorer, ledger, txSvc, tokens, logger)
	zkHandler := handler.NewZKHandler(zkClient, txSvc, ledger, tokens, logger)

	var authHandler *handler.AuthHandler
	if tokens != nil {
		authHandler = handler.NewAuthHandler(userSvc, tokens, logger)
	}

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := viper.GetStringSlice("server.cors_origins")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	if rps := viper.GetInt("server.rate_limit_rps"); rps > 0 {
		limiter := handler.NewRateLimiter(handler.RateLimitConfig{
			RequestsPerSecond: rps,
			Burst:             viper.GetInt("server.rate_limit_burst"),
		}, logger)
		router.Use(limiter.Middleware())
	}

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	txHandler.Register(v1)
	merkleHandler.Register(v1)
	anchorHandler.Register(v1)
	zkHandler.Register(v1)
	if authHandler != nil {
		authHandler.Register(v1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Closed once the shutdown signal arrives, so background loops and the
	// signal wait below don't compete for the same channel receive.
	done := make(chan struct{})

	// ── Background: periodic root anchoring ──────────────────────────────────
	if interval, _ := time.ParseDuration(viper.GetString("anchor.auto_interval")); interval > 0 {
		go autoAnchor(done, interval, ledger, anchorer, txSvc, logger)
		logger.Info("periodic anchoring enabled")
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("copilotd listening", zap.Int("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-quit
	close(done)
	logger.Info("shutting down copilotd...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("copilotd stopped")
	return nil
}

// autoAnchor anchors the current ledger root every interval, skipping empty
// or unchanged roots, until done is closed.
func autoAnchor(done <-chan struct{}, interval time.Duration, ledger *evidence.Ledger, anchorer anchor.Anchorer, txSvc *transactions.Service, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastRoot string
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
			root := ledger.Root(ctx)
			if ledger.Len(ctx) == 0 || root == lastRoot {
				cancel()
				continue
			}
			result, err := anchorer.AnchorRoot(ctx, root)
			if err != nil {
				handler.RecordAnchor(false)
				logger.Warn("periodic anchoring failed", zap.Error(err))
				cancel()
				continue
			}
			handler.RecordAnchor(true)
			lastRoot = root
			if n, err := txSvc.MarkAnchored(ctx, result.Root); err != nil {
				logger.Warn("stamp anchored transactions", zap.Error(err))
			} else {
				logger.Info("periodic anchor complete",
					zap.String("root", result.Root),
					zap.Int("transactions_stamped", n),
				)
			}
			cancel()
		case <-done:
			return
		}
	}
}

// decimalSetting parses a decimal config value, keeping fallback on error.
func decimalSetting(key string, fallback decimal.Decimal) decimal.Decimal {
	v := viper.GetString(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return fallback
	}
	return d
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
