package crypto

import (
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MB
	argonThreads = 4
	saltLen      = 16
)

// CoerceKey turns an arbitrary caller-supplied key into the fixed-length
// vault key. A key already of the expected length is used as-is; anything
// else is run through a one-way hash. The result is never persisted.
func CoerceKey(key []byte) []byte {
	if len(key) == KeyLen {
		out := make([]byte, KeyLen)
		copy(out, key)
		return out
	}
	sum := sha256.Sum256(key)
	return sum[:]
}

// DeriveVaultKey stretches a human passphrase into a vault key with
// Argon2id. Use this at the edge when the caller holds a passphrase rather
// than key material; the salt must be stored alongside the vault location
// and reused for every derivation.
func DeriveVaultKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, KeyLen)
}

// GenerateSalt returns a fresh random salt for DeriveVaultKey.
func GenerateSalt() []byte {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return salt
}
