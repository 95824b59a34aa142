// Package vault implements the encrypted personal-data vault: a secure
// store wrapping the record table with per-record authenticated encryption,
// and a typed manager for contacts, memories, and reminders.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/kinvault/kinvault/internal/crypto"
	"github.com/kinvault/kinvault/internal/storage"
)

// SecureStore encrypts and decrypts vault rows. Every write re-seals the
// full plaintext under a fresh nonce; callers read-merge-write plaintext
// rather than patching ciphertext fields. The key is derived once at
// construction and never persisted.
type SecureStore struct {
	store storage.RecordStore
	key   []byte
}

// NewSecureStore wraps a record store with authenticated encryption.
// The caller-supplied key is coerced to the fixed length if needed.
func NewSecureStore(store storage.RecordStore, key []byte) *SecureStore {
	return &SecureStore{
		store: store,
		key:   crypto.CoerceKey(key),
	}
}

// DecodedRecord pairs a decrypted plaintext with its row metadata.
type DecodedRecord struct {
	Meta      *storage.EncryptedRecord
	Plaintext []byte
}

// Put seals plaintext and upserts the record.
func (s *SecureStore) Put(ctx context.Context, recordType, recordID, userID string, plaintext []byte) error {
	ciphertext, nonce, tag, err := crypto.Seal(plaintext, s.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt record: %w", err)
	}

	rec := &storage.EncryptedRecord{
		RecordType: recordType,
		RecordID:   recordID,
		UserID:     userID,
		Scope:      storage.ScopeForRecordType(recordType),
		Ciphertext: ciphertext,
		IV:         nonce,
		AuthTag:    tag,
		Encoding:   storage.EncodingBinary,
		Algorithm:  crypto.AlgorithmAESGCM,
	}

	return s.store.Put(ctx, rec)
}

// Get retrieves and decrypts a single record.
// Returns storage.ErrNotFound when the record is absent or soft-deleted.
func (s *SecureStore) Get(ctx context.Context, recordType, recordID, userID string) ([]byte, error) {
	rec, err := s.store.Get(ctx, recordType, recordID, userID)
	if err != nil {
		return nil, err
	}
	return s.open(rec)
}

// List retrieves and decrypts all records of one type for one user. Reads
// are scoped to the grant label the record type belongs to unless the
// caller narrows further. Each row is decrypted independently: a corrupt
// or foreign-key row is skipped with a log line, never fatal to the listing.
func (s *SecureStore) List(ctx context.Context, recordType, userID string, opts storage.ListOptions) ([]DecodedRecord, error) {
	if opts.Scope == "" {
		opts.Scope = storage.ScopeForRecordType(recordType)
	}
	records, err := s.store.List(ctx, recordType, userID, opts)
	if err != nil {
		return nil, err
	}

	decoded := make([]DecodedRecord, 0, len(records))
	for _, rec := range records {
		plaintext, err := s.open(rec)
		if err != nil {
			log.Printf("vault: skipping undecryptable %s record %s: %v", rec.RecordType, rec.RecordID, err)
			continue
		}
		decoded = append(decoded, DecodedRecord{Meta: rec, Plaintext: plaintext})
	}

	return decoded, nil
}

// ListAll is List without metadata, excluding soft-deleted rows.
func (s *SecureStore) ListAll(ctx context.Context, recordType, userID string) ([][]byte, error) {
	decoded, err := s.List(ctx, recordType, userID, storage.ListOptions{})
	if err != nil {
		return nil, err
	}

	plaintexts := make([][]byte, 0, len(decoded))
	for _, d := range decoded {
		plaintexts = append(plaintexts, d.Plaintext)
	}
	return plaintexts, nil
}

// SoftDelete marks a record deleted; its ciphertext stays in the table.
func (s *SecureStore) SoftDelete(ctx context.Context, recordType, recordID, userID string) (bool, error) {
	return s.store.SoftDelete(ctx, recordType, recordID, userID)
}

func (s *SecureStore) open(rec *storage.EncryptedRecord) ([]byte, error) {
	if rec.Algorithm != crypto.AlgorithmAESGCM {
		return nil, errors.New("unsupported algorithm: " + rec.Algorithm)
	}
	return crypto.Open(rec.Ciphertext, rec.IV, rec.AuthTag, s.key)
}
