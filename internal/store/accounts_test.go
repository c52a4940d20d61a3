package store

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestGenerateAPIKey(t *testing.T) {
	fullKey, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}

	if !strings.HasPrefix(fullKey, "bmk_") {
		t.Errorf("key %q missing bmk_ prefix", fullKey)
	}
	if len(fullKey) != 68 {
		t.Errorf("key length = %d, want 68", len(fullKey))
	}
	if prefix != fullKey[:8] {
		t.Errorf("prefix = %q, want first 8 chars of key", prefix)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(fullKey)); err != nil {
		t.Errorf("hash does not verify against key: %v", err)
	}
}

func TestGenerateAPIKey_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		key, _, _, err := GenerateAPIKey()
		if err != nil {
			t.Fatalf("GenerateAPIKey: %v", err)
		}
		if seen[key] {
			t.Fatalf("duplicate key generated: %s", key)
		}
		seen[key] = true
	}
}
