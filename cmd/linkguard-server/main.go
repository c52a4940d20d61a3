package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aloe-labs/linkguard/internal/api"
	"github.com/aloe-labs/linkguard/internal/audit"
	"github.com/aloe-labs/linkguard/internal/auth"
	"github.com/aloe-labs/linkguard/internal/fetcher"
	"github.com/aloe-labs/linkguard/internal/ratelimit"
	"github.com/aloe-labs/linkguard/internal/store"
	"github.com/aloe-labs/linkguard/internal/urlcheck"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("LINKGUARD_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("LINKGUARD_HTTP_PORT", "8080")
	maxContentSize := envOrDefaultInt64("LINKGUARD_MAX_CONTENT_SIZE", fetcher.DefaultMaxContentSize)
	fetchTimeoutMs := envOrDefaultInt("LINKGUARD_FETCH_TIMEOUT_MS", 10000)
	maxRedirects := envOrDefaultInt("LINKGUARD_MAX_REDIRECTS", fetcher.DefaultMaxRedirects)
	userRateLimit := envOrDefaultInt("LINKGUARD_USER_RATE_LIMIT", ratelimit.DefaultUserLimit)
	ipRateLimit := envOrDefaultInt("LINKGUARD_IP_RATE_LIMIT", ratelimit.DefaultIPLimit)
	cacheTTL := envOrDefaultInt("LINKGUARD_AUTH_CACHE_TTL_S", 30)
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")

	logger.Info("starting linkguard server",
		zap.String("http_port", httpPort),
		zap.Int64("max_content_size", maxContentSize),
		zap.Int("fetch_timeout_ms", fetchTimeoutMs),
		zap.Int("max_redirects", maxRedirects),
		zap.Int("user_rate_limit", userRateLimit),
		zap.Int("ip_rate_limit", ipRateLimit),
	)

	// Fetch pipeline
	validator := urlcheck.NewValidator(nil, logger)
	secureFetcher := fetcher.NewSecureFetcher(validator, fetcher.Config{
		TimeoutPerHop: time.Duration(fetchTimeoutMs) * time.Millisecond,
		MaxRedirects:  maxRedirects,
	}, logger)

	// Rate limiter with background eviction of idle keys
	limiter := ratelimit.NewLimiter(nil, logger)
	limiter.StartSweeper()
	defer limiter.Close()

	// Audit trail — ClickHouse or LogWriter fallback
	var writer audit.Writer
	if clickhouseDSN != "" {
		chWriter, err := audit.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = audit.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = audit.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	// ClickHouse reader (for the events endpoint)
	var chReader *audit.Reader
	if clickhouseDSN != "" {
		var err error
		chReader, err = audit.NewReader(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
		} else {
			defer func() { _ = chReader.Close() }()
			logger.Info("clickhouse reader connected")
		}
	}

	// Postgres pool — account store + API key auth
	var pgStore *store.Store
	var authenticator auth.Authenticator
	if postgresDSN != "" {
		db, err := sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		pgStore = store.NewStore(db)
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			DB:       db,
			CacheTTL: time.Duration(cacheTTL) * time.Second,
			Logger:   logger,
		})
		logger.Info("postgres connected")
	} else {
		authenticator = auth.NewStaticAuthenticator()
		logger.Warn("no POSTGRES_DSN set, using static auth; account API will not be available")
	}

	deps := &api.Dependencies{
		Auth:           authenticator,
		Store:          pgStore,
		Fetcher:        secureFetcher,
		Limiter:        limiter,
		Writer:         writer,
		Reader:         chReader,
		Logger:         logger,
		MaxContentSize: maxContentSize,
		UserRateLimit:  userRateLimit,
		IPRateLimit:    ipRateLimit,
	}
	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("linkguard server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}
