// Package storage provides the encrypted-record persistence layer for the
// vault. Backends implement the small RecordStore interface; encryption and
// decryption happen above this layer, so a backend only ever handles opaque
// ciphertext rows.
package storage

import "context"

// RecordStore persists encrypted vault rows keyed by
// (record_type, record_id, user_id). Writes are upserts; deletion is
// logical only.
type RecordStore interface {
	// Put creates or replaces a record (upsert semantics). The store owns
	// CreatedAt on first insert and bumps UpdatedAt on every write.
	Put(ctx context.Context, rec *EncryptedRecord) error

	// Get retrieves a single non-deleted record.
	// Returns ErrNotFound if the record doesn't exist or is soft-deleted.
	Get(ctx context.Context, recordType, recordID, userID string) (*EncryptedRecord, error)

	// List retrieves all records of one type for one user, in created_at
	// order. Soft-deleted rows are excluded unless opts.IncludeDeleted.
	List(ctx context.Context, recordType, userID string, opts ListOptions) ([]*EncryptedRecord, error)

	// SoftDelete marks a record deleted without removing its ciphertext.
	// Returns false if no live record matched.
	SoftDelete(ctx context.Context, recordType, recordID, userID string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}
