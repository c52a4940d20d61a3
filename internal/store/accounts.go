package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Account represents a row in the accounts table.
type Account struct {
	ID           string
	Name         string
	APIKeyHash   string
	APIKeyPrefix string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpdateAccountParams holds optional fields for partial account updates.
type UpdateAccountParams struct {
	Name *string
}

// GenerateAPIKey creates a new bmk_ API key with its bcrypt hash and prefix.
// Returns (fullKey, hash, prefix, error). The fullKey is shown to the user once.
func GenerateAPIKey() (string, string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("GenerateAPIKey: %w", err)
	}
	fullKey := "bmk_" + hex.EncodeToString(raw) // 68 chars total

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullKey), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("GenerateAPIKey: %w", err)
	}

	prefix := fullKey[:8] // "bmk_abcd"
	return fullKey, string(hashBytes), prefix, nil
}

// CreateAccount inserts a new account.
// Returns the account and plaintext API key (shown once).
func (s *Store) CreateAccount(ctx context.Context, name string) (*Account, string, error) {
	fullKey, keyHash, keyPrefix, err := GenerateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("CreateAccount: %w", err)
	}

	var a Account
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (name, api_key_hash, api_key_prefix)
		VALUES ($1, $2, $3)
		RETURNING id, name, api_key_hash, api_key_prefix, created_at, updated_at`,
		name, keyHash, keyPrefix,
	).Scan(&a.ID, &a.Name, &a.APIKeyHash, &a.APIKeyPrefix, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("CreateAccount: %w", err)
	}

	return &a, fullKey, nil
}

// ListAccounts returns all accounts ordered by created_at DESC.
func (s *Store) ListAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, api_key_hash, api_key_prefix, created_at, updated_at
		FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.APIKeyHash, &a.APIKeyPrefix,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ListAccounts: %w", err)
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// GetAccount returns an account by ID, or nil if not found.
func (s *Store) GetAccount(ctx context.Context, id string) (*Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, api_key_hash, api_key_prefix, created_at, updated_at
		FROM accounts WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.APIKeyHash, &a.APIKeyPrefix, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return &a, nil
}

// UpdateAccount applies a partial update to an account. Only non-nil fields are changed.
func (s *Store) UpdateAccount(ctx context.Context, id string, params UpdateAccountParams) (*Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx, `
		UPDATE accounts SET
			name       = COALESCE($2, name),
			updated_at = now()
		WHERE id = $1
		RETURNING id, name, api_key_hash, api_key_prefix, created_at, updated_at`,
		id, params.Name,
	).Scan(&a.ID, &a.Name, &a.APIKeyHash, &a.APIKeyPrefix, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("UpdateAccount: %w", err)
	}
	return &a, nil
}

// DeleteAccount deletes an account by ID.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RotateAPIKey generates a new API key for an account.
// Returns the updated account and the plaintext key (shown once).
func (s *Store) RotateAPIKey(ctx context.Context, id string) (*Account, string, error) {
	fullKey, keyHash, keyPrefix, err := GenerateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("RotateAPIKey: %w", err)
	}

	var a Account
	err = s.db.QueryRowContext(ctx, `
		UPDATE accounts SET
			api_key_hash   = $2,
			api_key_prefix = $3,
			updated_at     = now()
		WHERE id = $1
		RETURNING id, name, api_key_hash, api_key_prefix, created_at, updated_at`,
		id, keyHash, keyPrefix,
	).Scan(&a.ID, &a.Name, &a.APIKeyHash, &a.APIKeyPrefix, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("RotateAPIKey: account not found")
	}
	if err != nil {
		return nil, "", fmt.Errorf("RotateAPIKey: %w", err)
	}

	return &a, fullKey, nil
}
