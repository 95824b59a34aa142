package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates that the backing store is unreachable.
	// Commands that hit this error fail verbatim; there are no retries.
	ErrUnavailable = errors.New("storage not available")
)

// Record types stored in the vault. The record type is part of the primary
// key and selects the plaintext schema of the row.
const (
	RecordTypeContact  = "contact"
	RecordTypeMemory   = "memory"
	RecordTypeReminder = "reminder"
)

// Scopes label which access grant a record belongs to. Consent validation
// happens outside this core; the scope is persisted so the host system can
// gate reads per grant.
const (
	ScopeContacts  = "contacts"
	ScopeMemories  = "memories"
	ScopeReminders = "reminders"
)

// ScopeForRecordType returns the scope label records of the given type are
// stored under.
func ScopeForRecordType(recordType string) string {
	switch recordType {
	case RecordTypeMemory:
		return ScopeMemories
	case RecordTypeReminder:
		return ScopeReminders
	default:
		return ScopeContacts
	}
}

// EncryptedRecord is one row of the vault table. The plaintext never touches
// this layer; ciphertext, nonce, and authentication tag are opaque bytes
// produced by the secure store above.
type EncryptedRecord struct {
	RecordType string `json:"record_type"`
	RecordID   string `json:"record_id"`
	UserID     string `json:"user_id"`
	AgentID    string `json:"agent_id,omitempty"`
	Scope      string `json:"scope"`

	Ciphertext []byte `json:"ciphertext"`
	IV         []byte `json:"iv"`
	AuthTag    []byte `json:"auth_tag"`
	Encoding   string `json:"encoding"`
	Algorithm  string `json:"algorithm"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted"`
}

// EncodingBinary is the only encoding the Go stores write: ciphertext, IV,
// and tag are raw bytes in BLOB/BYTEA columns. The column exists so records
// written by other encodings remain self-describing.
const EncodingBinary = "binary"

// ListOptions narrows List queries.
type ListOptions struct {
	// Scope restricts results to records stored under one scope label.
	// Empty means no scope filter.
	Scope string

	// IncludeDeleted includes soft-deleted rows. Administrative listings
	// use this; normal reads never see deleted rows.
	IncludeDeleted bool
}
