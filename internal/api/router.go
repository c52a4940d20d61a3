package api

import (
	"net/http"

	"github.com/aloe-labs/linkguard/internal/audit"
	"github.com/aloe-labs/linkguard/internal/auth"
	"github.com/aloe-labs/linkguard/internal/fetcher"
	"github.com/aloe-labs/linkguard/internal/ratelimit"
	"github.com/aloe-labs/linkguard/internal/store"
	"go.uber.org/zap"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Auth    auth.Authenticator
	Store   *store.Store // nil if Postgres unavailable
	Fetcher *fetcher.SecureFetcher
	Limiter *ratelimit.Limiter
	Writer  audit.Writer
	Reader  *audit.Reader // nil if ClickHouse unavailable
	Logger  *zap.Logger

	MaxContentSize int64
	UserRateLimit  int
	IPRateLimit    int
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Metadata fetch (auth required via Bearer bmk_ token)
	mux.HandleFunc("POST /v1/metadata", deps.authMiddleware(deps.handleFetchMetadata))

	// Account CRUD (no auth — dashboard auth added later)
	mux.HandleFunc("POST /api/linkguard/accounts", deps.handleCreateAccount)
	mux.HandleFunc("GET /api/linkguard/accounts", deps.handleListAccounts)
	mux.HandleFunc("GET /api/linkguard/accounts/{account_id}", deps.handleGetAccount)
	mux.HandleFunc("PATCH /api/linkguard/accounts/{account_id}", deps.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/linkguard/accounts/{account_id}", deps.handleDeleteAccount)
	mux.HandleFunc("POST /api/linkguard/accounts/{account_id}/rotate-key", deps.handleRotateKey)

	// Audit trail (no auth)
	mux.HandleFunc("GET /api/linkguard/events", deps.handleListEvents)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}
