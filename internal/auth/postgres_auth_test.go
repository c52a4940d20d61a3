package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// fakeAccountStore returns canned rows or errors per prefix.
type fakeAccountStore struct {
	rows    map[string]*accountRow
	err     error
	lookups int
}

func (s *fakeAccountStore) LookupByPrefix(_ context.Context, prefix string) (*accountRow, error) {
	s.lookups++
	if s.err != nil {
		return nil, s.err
	}
	row, ok := s.rows[prefix]
	if !ok {
		return nil, ErrInvalidAPIKey
	}
	return row, nil
}

func hashKey(t *testing.T, key string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func newTestAuthenticator(store AccountStore) *PostgresAuthenticator {
	return newPostgresAuthenticatorWithStore(store, NewCache(30*time.Second), zap.NewNop())
}

func TestAuthenticate_ValidKey(t *testing.T) {
	const key = "bmk_abcd1234efgh5678"
	store := &fakeAccountStore{rows: map[string]*accountRow{
		"bmk_abcd": {ID: "acct-1", Name: "alice", APIKeyHash: hashKey(t, key)},
	}}
	a := newTestAuthenticator(store)

	acct, err := a.Authenticate(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.ID != "acct-1" || acct.Name != "alice" {
		t.Errorf("account = %+v", acct)
	}
}

func TestAuthenticate_CachesResult(t *testing.T) {
	const key = "bmk_abcd1234efgh5678"
	store := &fakeAccountStore{rows: map[string]*accountRow{
		"bmk_abcd": {ID: "acct-1", APIKeyHash: hashKey(t, key)},
	}}
	a := newTestAuthenticator(store)

	for i := 0; i < 3; i++ {
		if _, err := a.Authenticate(context.Background(), key); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if store.lookups != 1 {
		t.Errorf("store hit %d times, want 1 (cache must absorb repeats)", store.lookups)
	}
}

func TestAuthenticate_WrongSecretRightPrefix(t *testing.T) {
	store := &fakeAccountStore{rows: map[string]*accountRow{
		"bmk_abcd": {ID: "acct-1", APIKeyHash: hashKey(t, "bmk_abcd_the_real_key")},
	}}
	a := newTestAuthenticator(store)

	_, err := a.Authenticate(context.Background(), "bmk_abcd_guessed_key")
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("err = %v, want ErrInvalidAPIKey", err)
	}
}

func TestAuthenticate_FormatRejections(t *testing.T) {
	a := newTestAuthenticator(&fakeAccountStore{})

	tests := []struct {
		name string
		key  string
		want error
	}{
		{"empty", "", ErrMissingAPIKey},
		{"wrong prefix", "tsk_abcd1234", ErrInvalidAPIKey},
		{"too short", "bmk_ab", ErrInvalidAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Authenticate(context.Background(), tt.key)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAuthenticate_UnknownPrefix(t *testing.T) {
	a := newTestAuthenticator(&fakeAccountStore{rows: map[string]*accountRow{}})

	_, err := a.Authenticate(context.Background(), "bmk_zzzz9999")
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("err = %v, want ErrInvalidAPIKey", err)
	}
}

func TestAuthenticate_DBErrorIsUnavailable(t *testing.T) {
	a := newTestAuthenticator(&fakeAccountStore{err: errors.New("connection refused")})

	_, err := a.Authenticate(context.Background(), "bmk_abcd1234")
	if !errors.Is(err, ErrAuthUnavailable) {
		t.Fatalf("err = %v, want ErrAuthUnavailable", err)
	}
}

func TestStaticAuthenticator(t *testing.T) {
	a := NewStaticAuthenticator()

	acct, err := a.Authenticate(context.Background(), "bmk_dev12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.ID != "bmk_dev1" {
		t.Errorf("account ID = %s", acct.ID)
	}

	if _, err := a.Authenticate(context.Background(), "nope"); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("err = %v, want ErrInvalidAPIKey", err)
	}
}
