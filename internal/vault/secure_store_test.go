package vault

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/kinvault/kinvault/internal/storage"
	"github.com/kinvault/kinvault/internal/storage/sqlite"
)

func newTestSecureStore(t *testing.T, key []byte) *SecureStore {
	t.Helper()
	store, err := sqlite.NewRecordStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create record store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewSecureStore(store, key)
}

func TestSecureStore_PutGetRoundtrip(t *testing.T) {
	secure := newTestSecureStore(t, []byte("vault key"))
	ctx := context.Background()

	plaintext := []byte(`{"name":"Ada Lovelace","email":"ada@analytical.engine"}`)
	if err := secure.Put(ctx, storage.RecordTypeContact, "ada-lovelace", "user-1", plaintext); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	got, err := secure.Get(ctx, storage.RecordTypeContact, "ada-lovelace", "user-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("roundtrip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestSecureStore_FreshNoncePerWrite(t *testing.T) {
	store, err := sqlite.NewRecordStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create record store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	secure := NewSecureStore(store, []byte("vault key"))
	ctx := context.Background()

	plaintext := []byte("same plaintext")
	if err := secure.Put(ctx, storage.RecordTypeContact, "a", "user-1", plaintext); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	first, err := store.Get(ctx, storage.RecordTypeContact, "a", "user-1")
	if err != nil {
		t.Fatalf("raw Get() failed: %v", err)
	}

	if err := secure.Put(ctx, storage.RecordTypeContact, "a", "user-1", plaintext); err != nil {
		t.Fatalf("second Put() failed: %v", err)
	}
	second, err := store.Get(ctx, storage.RecordTypeContact, "a", "user-1")
	if err != nil {
		t.Fatalf("raw Get() failed: %v", err)
	}

	if bytes.Equal(first.IV, second.IV) {
		t.Fatal("re-encrypting the same record reused a nonce")
	}
	if bytes.Equal(first.Ciphertext, second.Ciphertext) {
		t.Fatal("re-encrypting the same record produced identical ciphertext")
	}
}

func TestSecureStore_SoftDeleteThenGetAbsent(t *testing.T) {
	secure := newTestSecureStore(t, []byte("vault key"))
	ctx := context.Background()

	if err := secure.Put(ctx, storage.RecordTypeContact, "ada", "user-1", []byte("x")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	deleted, err := secure.SoftDelete(ctx, storage.RecordTypeContact, "ada", "user-1")
	if err != nil || !deleted {
		t.Fatalf("SoftDelete() = (%v, %v), want (true, nil)", deleted, err)
	}

	if _, err := secure.Get(ctx, storage.RecordTypeContact, "ada", "user-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get() after soft delete: got %v, want ErrNotFound", err)
	}

	// The row remains visible to an include-deleted listing.
	decoded, err := secure.List(ctx, storage.RecordTypeContact, "user-1", storage.ListOptions{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("List(IncludeDeleted) failed: %v", err)
	}
	if len(decoded) != 1 || !decoded[0].Meta.Deleted {
		t.Fatalf("include-deleted listing: got %d rows, want 1 deleted row", len(decoded))
	}
}

func TestSecureStore_ListSkipsCorruptRows(t *testing.T) {
	store, err := sqlite.NewRecordStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create record store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	secure := NewSecureStore(store, []byte("vault key"))
	ctx := context.Background()

	if err := secure.Put(ctx, storage.RecordTypeContact, "good", "user-1", []byte("good row")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	// Write a row sealed under a different key: it must be skipped, not fatal.
	foreign := NewSecureStore(store, []byte("some other key"))
	if err := foreign.Put(ctx, storage.RecordTypeContact, "bad", "user-1", []byte("foreign row")); err != nil {
		t.Fatalf("foreign Put() failed: %v", err)
	}

	plaintexts, err := secure.ListAll(ctx, storage.RecordTypeContact, "user-1")
	if err != nil {
		t.Fatalf("ListAll() failed: %v", err)
	}
	if len(plaintexts) != 1 {
		t.Fatalf("ListAll(): got %d rows, want 1 (corrupt row skipped)", len(plaintexts))
	}
	if !bytes.Equal(plaintexts[0], []byte("good row")) {
		t.Fatalf("ListAll(): got %q, want %q", plaintexts[0], "good row")
	}
}

func TestSecureStore_WrongKeyCannotRead(t *testing.T) {
	store, err := sqlite.NewRecordStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create record store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	if err := NewSecureStore(store, []byte("right key")).Put(ctx, storage.RecordTypeContact, "ada", "user-1", []byte("secret")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	if _, err := NewSecureStore(store, []byte("wrong key")).Get(ctx, storage.RecordTypeContact, "ada", "user-1"); err == nil {
		t.Fatal("Get() with the wrong key should fail")
	}
}

func TestSecureStore_ListScopedToRecordTypeGrant(t *testing.T) {
	store, err := sqlite.NewRecordStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create record store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	secure := NewSecureStore(store, []byte("vault key"))
	if err := secure.Put(ctx, storage.RecordTypeContact, "ada", "user-1", []byte("good row")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	// A row of the same record type filed under a different grant label
	// must not be visible to vault reads.
	if err := store.Put(ctx, &storage.EncryptedRecord{
		RecordType: storage.RecordTypeContact,
		RecordID:   "smuggled",
		UserID:     "user-1",
		Scope:      storage.ScopeMemories,
		Ciphertext: []byte{1, 2, 3},
		IV:         []byte{4, 5, 6},
		AuthTag:    []byte{7, 8, 9},
	}); err != nil {
		t.Fatalf("raw Put() failed: %v", err)
	}

	plaintexts, err := secure.ListAll(ctx, storage.RecordTypeContact, "user-1")
	if err != nil {
		t.Fatalf("ListAll() failed: %v", err)
	}
	if len(plaintexts) != 1 {
		t.Fatalf("ListAll(): got %d rows, want 1 (mislabeled row excluded)", len(plaintexts))
	}
	if !bytes.Equal(plaintexts[0], []byte("good row")) {
		t.Fatalf("ListAll(): got %q, want %q", plaintexts[0], "good row")
	}
}
