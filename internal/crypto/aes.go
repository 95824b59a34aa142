// Package crypto implements the authenticated encryption used by the
// encrypted record store: AES-256-GCM with a fresh nonce per write and the
// GCM tag carried separately from the ciphertext body.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const (
	// AlgorithmAESGCM is the algorithm label persisted with every record.
	AlgorithmAESGCM = "aes-256-gcm"

	NonceLen = 12
	TagLen   = 16
	KeyLen   = 32 // 256 bits
)

// Seal encrypts plaintext under key with a random nonce and returns the
// ciphertext body, the nonce, and the GCM authentication tag separately.
// The three parts map onto the ciphertext/iv/auth_tag record columns.
func Seal(plaintext, key []byte) (ciphertext, nonce, tag []byte, err error) {
	if len(key) != KeyLen {
		return nil, nil, nil, fmt.Errorf("key must be %d bytes, got %d", KeyLen, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("new gcm: %w", err)
	}

	nonce = make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagLen
	return sealed[:split], nonce, sealed[split:], nil
}

// Open decrypts a record previously produced by Seal. It fails if the key
// is wrong or if any of ciphertext, nonce, or tag has been altered.
func Open(ciphertext, nonce, tag, key []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeyLen, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}

	return plaintext, nil
}
