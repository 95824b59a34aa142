package crypto

import (
	"bytes"
	"testing"
)

func TestCoerceKey_PassesThrough32Bytes(t *testing.T) {
	key := make([]byte, KeyLen)
	for i := range key {
		key[i] = byte(i)
	}

	out := CoerceKey(key)
	if !bytes.Equal(out, key) {
		t.Fatal("a 32-byte key should be used as-is")
	}

	// The returned key must be a copy, not an alias.
	out[0] ^= 0xff
	if key[0] == out[0] {
		t.Fatal("CoerceKey must copy the key")
	}
}

func TestCoerceKey_HashesOtherLengths(t *testing.T) {
	out := CoerceKey([]byte("passphrase"))
	if len(out) != KeyLen {
		t.Fatalf("coerced key length: got %d, want %d", len(out), KeyLen)
	}

	again := CoerceKey([]byte("passphrase"))
	if !bytes.Equal(out, again) {
		t.Fatal("coercion must be deterministic")
	}

	other := CoerceKey([]byte("different"))
	if bytes.Equal(out, other) {
		t.Fatal("different inputs must coerce to different keys")
	}
}

func TestDeriveVaultKey_Deterministic(t *testing.T) {
	salt := GenerateSalt()

	k1 := DeriveVaultKey("correct horse battery staple", salt)
	k2 := DeriveVaultKey("correct horse battery staple", salt)
	if !bytes.Equal(k1, k2) {
		t.Fatal("same passphrase and salt must derive the same key")
	}
	if len(k1) != KeyLen {
		t.Fatalf("derived key length: got %d, want %d", len(k1), KeyLen)
	}

	k3 := DeriveVaultKey("correct horse battery staple", GenerateSalt())
	if bytes.Equal(k1, k3) {
		t.Fatal("different salts must derive different keys")
	}
}
