package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AccountStore abstracts DB queries for testability.
type AccountStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*accountRow, error)
}

type accountRow struct {
	ID         string
	Name       string
	APIKeyHash string
}

// sqlAccountStore is the real implementation using *sql.DB.
type sqlAccountStore struct {
	db *sql.DB
}

func (s *sqlAccountStore) LookupByPrefix(ctx context.Context, prefix string) (*accountRow, error) {
	row := &accountRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, api_key_hash FROM accounts WHERE api_key_prefix = $1`,
		prefix,
	).Scan(&row.ID, &row.Name, &row.APIKeyHash)
	if err != nil {
		if err == sql.ErrNoRows {
			// No account with this prefix — reject, don't fail open.
			return nil, ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("sqlAccountStore.LookupByPrefix: %w", err)
	}
	return row, nil
}

// PostgresAuthenticator validates API keys against the accounts table.
// Uses Cache with stale-while-revalidate to keep DB + bcrypt off the
// hot path. Auth failures always return an error — no fetch runs
// without a valid key.
type PostgresAuthenticator struct {
	store  AccountStore
	cache  *Cache
	logger *zap.Logger
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration // Default: 30s
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates a new authenticator backed by PostgreSQL.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  &sqlAccountStore{db: cfg.DB},
		cache:  NewCache(ttl),
		logger: cfg.Logger,
	}
}

// newPostgresAuthenticatorWithStore creates an authenticator with an
// injected store (for testing).
func newPostgresAuthenticatorWithStore(store AccountStore, cache *Cache, logger *zap.Logger) *PostgresAuthenticator {
	return &PostgresAuthenticator{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Authenticate validates the API key against the database.
//
// Flow:
//  1. Format check (prefix, length) — no backend work for garbage keys
//  2. Cache lookup (stale-while-revalidate):
//     - Fresh hit: return immediately
//     - Stale hit: return stale account, spawn background refresh
//     - Miss: do full DB + bcrypt lookup synchronously
func (a *PostgresAuthenticator) Authenticate(ctx context.Context, apiKey string) (*Account, error) {
	if err := CheckKeyFormat(apiKey); err != nil {
		return nil, err
	}

	result := a.cache.Get(apiKey)
	if result.Hit {
		if result.NeedsRefresh {
			go a.backgroundRefresh(apiKey)
		}
		return result.Account, nil
	}

	account, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		return a.handleLookupError(err)
	}

	a.cache.Set(apiKey, account)
	return account, nil
}

// backgroundRefresh performs the DB + bcrypt lookup in a background
// goroutine. Errors are logged but don't affect the caller (they
// already got the stale value).
func (a *PostgresAuthenticator) backgroundRefresh(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	account, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		a.logger.Warn("background cache refresh failed",
			zap.Error(err),
		)
		// Drop the stale entry so the next read retries synchronously.
		a.cache.Delete(apiKey)
		return
	}

	a.cache.Set(apiKey, account)
}

// lookupAndVerify does the full DB prefix lookup + bcrypt verification.
func (a *PostgresAuthenticator) lookupAndVerify(ctx context.Context, apiKey string) (*Account, error) {
	prefix := apiKey[:prefixLen]

	row, err := a.store.LookupByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("lookupAndVerify: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.APIKeyHash), []byte(apiKey)); err != nil {
		return nil, ErrInvalidAPIKey
	}

	return &Account{
		ID:   row.ID,
		Name: row.Name,
	}, nil
}

// handleLookupError maps backend failures: bad keys stay bad keys, DB
// trouble surfaces as unavailable.
func (a *PostgresAuthenticator) handleLookupError(lookupErr error) (*Account, error) {
	if errors.Is(lookupErr, ErrInvalidAPIKey) {
		return nil, ErrInvalidAPIKey
	}

	a.logger.Warn("auth DB unreachable",
		zap.Error(lookupErr),
	)
	return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, lookupErr)
}
