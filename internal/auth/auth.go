// Package auth validates API keys and resolves them to accounts. The
// account ID is the identity the rate limiter and audit trail key on.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrMissingAPIKey   = errors.New("missing API key")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrAuthUnavailable = errors.New("authentication backend unavailable")
)

// KeyPrefix is the fixed prefix of every issued API key.
const KeyPrefix = "bmk_"

// prefixLen is how many leading characters index the accounts table.
const prefixLen = 8

// Account holds the authenticated caller's identity.
type Account struct {
	ID   string
	Name string
}

// Authenticator validates a presented API key and returns the account
// it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*Account, error)
}

// CheckKeyFormat rejects tokens that cannot possibly be valid keys
// before any backend lookup.
func CheckKeyFormat(apiKey string) error {
	if apiKey == "" {
		return ErrMissingAPIKey
	}
	if len(apiKey) < prefixLen || !strings.HasPrefix(apiKey, KeyPrefix) {
		return ErrInvalidAPIKey
	}
	return nil
}

// StaticAuthenticator accepts any well-formed key and derives the
// account ID from its prefix. For local development without Postgres;
// never for production.
type StaticAuthenticator struct{}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, apiKey string) (*Account, error) {
	if err := CheckKeyFormat(apiKey); err != nil {
		return nil, err
	}
	return &Account{
		ID:   apiKey[:prefixLen],
		Name: "static",
	}, nil
}
