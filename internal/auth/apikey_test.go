package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evcraddock/nfc-timecontrol/internal/db"
)

func TestAPIKeyCreateAndValidate(t *testing.T) {
	store := testAPIKeyStore(t)
	ctx := context.Background()

	rawKey, key, err := store.Create(ctx, "Test Key")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if key.Name != "Test Key" {
		t.Errorf("name = %q, want %q", key.Name, "Test Key")
	}
	if len(rawKey) != len(apiKeyPrefix)+2*apiKeyBytes {
		t.Errorf("raw key length = %d", len(rawKey))
	}

	valid, err := store.Validate(ctx, rawKey)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !valid {
		t.Error("expected valid key")
	}
}

func TestAPIKeyCreateRequiresName(t *testing.T) {
	store := testAPIKeyStore(t)

	if _, _, err := store.Create(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestAPIKeyValidateInvalid(t *testing.T) {
	store := testAPIKeyStore(t)

	for _, raw := range []string{"ntc_boguskey12345678", "hf_boguskey12345678", ""} {
		valid, err := store.Validate(context.Background(), raw)
		if err != nil {
			t.Fatalf("validate %q: %v", raw, err)
		}
		if valid {
			t.Errorf("expected %q invalid", raw)
		}
	}
}

func TestAPIKeyList(t *testing.T) {
	store := testAPIKeyStore(t)
	ctx := context.Background()

	if _, _, err := store.Create(ctx, "Key 1"); err != nil {
		t.Fatalf("create 1: %v", err)
	}
	if _, _, err := store.Create(ctx, "Key 2"); err != nil {
		t.Fatalf("create 2: %v", err)
	}

	keys, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	if keys[0].Name != "Key 2" {
		t.Errorf("first key = %q, want newest first", keys[0].Name)
	}
	if keys[0].CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestAPIKeyDelete(t *testing.T) {
	store := testAPIKeyStore(t)
	ctx := context.Background()

	rawKey, key, err := store.Create(ctx, "To Delete")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.Delete(ctx, key.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Should no longer validate
	valid, err := store.Validate(ctx, rawKey)
	if err != nil {
		t.Fatalf("validate after delete: %v", err)
	}
	if valid {
		t.Error("expected invalid after delete")
	}

	keys, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("got %d keys, want 0", len(keys))
	}
}

func TestAPIKeyDeleteNotFound(t *testing.T) {
	store := testAPIKeyStore(t)

	err := store.Delete(context.Background(), 999)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("err = %v, want ErrKeyNotFound", err)
	}
}

func TestAPIKeyUpdatesLastUsed(t *testing.T) {
	store := testAPIKeyStore(t)
	ctx := context.Background()

	rawKey, _, err := store.Create(ctx, "Usage Key")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	keys, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if keys[0].LastUsedAt != nil {
		t.Error("expected nil last_used_at before first use")
	}

	if _, err := store.Validate(ctx, rawKey); err != nil {
		t.Fatalf("validate: %v", err)
	}

	keys, err = store.List(ctx)
	if err != nil {
		t.Fatalf("list after use: %v", err)
	}
	if keys[0].LastUsedAt == nil {
		t.Error("expected non-nil last_used_at after use")
	}
}

func TestAPIKeyPrefix(t *testing.T) {
	store := testAPIKeyStore(t)

	rawKey, key, err := store.Create(context.Background(), "Prefix Key")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !strings.HasPrefix(rawKey, "ntc_") {
		t.Errorf("raw key should start with ntc_, got %q", rawKey[:4])
	}
	if key.KeyPrefix != rawKey[:8] {
		t.Errorf("prefix = %q, want %q", key.KeyPrefix, rawKey[:8])
	}
}

func testAPIKeyStore(t *testing.T) *APIKeyStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return NewAPIKeyStore(d)
}
