package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kinvault/kinvault/internal/storage"
)

// Schema is the vault table DDL. One logical table holds every record kind;
// (record_type, record_id, user_id) is the primary key and soft deletion is
// a flag, never a row removal.
const Schema = `
CREATE TABLE IF NOT EXISTS vault_records (
	record_type TEXT NOT NULL,
	record_id   TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	agent_id    TEXT NOT NULL DEFAULT '',
	scope       TEXT NOT NULL,
	ciphertext  BLOB NOT NULL,
	iv          BLOB NOT NULL,
	auth_tag    BLOB NOT NULL,
	encoding    TEXT NOT NULL DEFAULT 'binary',
	algorithm   TEXT NOT NULL DEFAULT 'aes-256-gcm',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	deleted     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (record_type, record_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_vault_records_user_type
	ON vault_records(user_id, record_type, deleted);
`

// RecordStore implements storage.RecordStore using SQLite.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore opens a SQLite database, configures WAL mode, and creates
// the schema. Use ":memory:" for an in-memory store in tests.
func NewRecordStore(dsn string) (*RecordStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode allows concurrent readers to proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Wait instead of failing immediately when the connection is held by
	// another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &RecordStore{db: db}, nil
}

// Put creates or replaces a record (upsert semantics).
func (s *RecordStore) Put(ctx context.Context, rec *storage.EncryptedRecord) error {
	if rec == nil {
		return storage.ErrInvalidInput
	}
	if rec.RecordType == "" || rec.RecordID == "" || rec.UserID == "" {
		return fmt.Errorf("%w: record type, id, and user id are required", storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Encoding == "" {
		rec.Encoding = storage.EncodingBinary
	}

	// created_at survives upserts so the first-insert timestamp is stable.
	query := `
		INSERT INTO vault_records (
			record_type, record_id, user_id, agent_id, scope,
			ciphertext, iv, auth_tag, encoding, algorithm,
			created_at, updated_at, deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_type, record_id, user_id) DO UPDATE SET
			agent_id = excluded.agent_id,
			scope = excluded.scope,
			ciphertext = excluded.ciphertext,
			iv = excluded.iv,
			auth_tag = excluded.auth_tag,
			encoding = excluded.encoding,
			algorithm = excluded.algorithm,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.RecordType,
		rec.RecordID,
		rec.UserID,
		rec.AgentID,
		rec.Scope,
		rec.Ciphertext,
		rec.IV,
		rec.AuthTag,
		rec.Encoding,
		rec.Algorithm,
		rec.CreatedAt,
		rec.UpdatedAt,
		boolToInt(rec.Deleted),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to store record: %v", storage.ErrUnavailable, err)
	}

	return nil
}

// Get retrieves a single non-deleted record.
func (s *RecordStore) Get(ctx context.Context, recordType, recordID, userID string) (*storage.EncryptedRecord, error) {
	query := selectColumns + `
		FROM vault_records
		WHERE record_type = ? AND record_id = ? AND user_id = ? AND deleted = 0
	`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, recordType, recordID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get record: %v", storage.ErrUnavailable, err)
	}

	return rec, nil
}

// List retrieves all records of one type for one user in created_at order.
func (s *RecordStore) List(ctx context.Context, recordType, userID string, opts storage.ListOptions) ([]*storage.EncryptedRecord, error) {
	query := selectColumns + `
		FROM vault_records
		WHERE record_type = ? AND user_id = ?
	`
	args := []interface{}{recordType, userID}

	if !opts.IncludeDeleted {
		query += " AND deleted = 0"
	}
	if opts.Scope != "" {
		query += " AND scope = ?"
		args = append(args, opts.Scope)
	}
	query += " ORDER BY created_at ASC, record_id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list records: %v", storage.ErrUnavailable, err)
	}
	defer rows.Close()

	var records []*storage.EncryptedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan record: %v", storage.ErrUnavailable, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate records: %v", storage.ErrUnavailable, err)
	}

	return records, nil
}

// SoftDelete marks a record deleted. The row and its ciphertext remain.
func (s *RecordStore) SoftDelete(ctx context.Context, recordType, recordID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE vault_records
		SET deleted = 1, updated_at = ?
		WHERE record_type = ? AND record_id = ? AND user_id = ? AND deleted = 0
	`, time.Now().UTC(), recordType, recordID, userID)
	if err != nil {
		return false, fmt.Errorf("%w: failed to soft-delete record: %v", storage.ErrUnavailable, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to read rows affected: %v", storage.ErrUnavailable, err)
	}

	return affected > 0, nil
}

// Close releases the underlying database handle.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

const selectColumns = `
	SELECT record_type, record_id, user_id, agent_id, scope,
	       ciphertext, iv, auth_tag, encoding, algorithm,
	       created_at, updated_at, deleted
`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*storage.EncryptedRecord, error) {
	var rec storage.EncryptedRecord
	var deleted int

	err := row.Scan(
		&rec.RecordType,
		&rec.RecordID,
		&rec.UserID,
		&rec.AgentID,
		&rec.Scope,
		&rec.Ciphertext,
		&rec.IV,
		&rec.AuthTag,
		&rec.Encoding,
		&rec.Algorithm,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&deleted,
	)
	if err != nil {
		return nil, err
	}

	rec.Deleted = deleted != 0
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time assertion.
var _ storage.RecordStore = (*RecordStore)(nil)
