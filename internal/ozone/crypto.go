package ozone

import (
	"crypto/rand"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/dreamware/ozone/internal/ozerr"
)

// Encryptor is the pluggable "encryption scheme" a SchemesOverride may
// substitute per call (spec.md §6). The zero value (nil) means "no
// encryption applied" — the writer/reader paths treat a nil Encryptor as a
// pass-through.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// SecretboxEncryptor implements Encryptor over golang.org/x/crypto's
// nacl/secretbox, the authenticated-encryption primitive the retrieved pack
// uses wherever a symmetric scheme is needed. Each call generates a fresh
// random nonce and prefixes it to the ciphertext, the conventional layout
// for secretbox since the API takes the nonce as a separate argument.
type SecretboxEncryptor struct {
	key [32]byte
}

// NewSecretboxEncryptor builds an Encryptor from a 32-byte shared key.
func NewSecretboxEncryptor(key [32]byte) *SecretboxEncryptor {
	return &SecretboxEncryptor{key: key}
}

// Encrypt seals plaintext under a fresh random nonce, returning nonce ||
// ciphertext.
func (s *SecretboxEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, ozerr.Wrap(ozerr.IO, err, "generating secretbox nonce")
	}
	out := make([]byte, 24, 24+len(plaintext)+secretbox.Overhead)
	copy(out, nonce[:])
	return secretbox.Seal(out, plaintext, &nonce, &s.key), nil
}

// Decrypt opens a nonce || ciphertext blob produced by Encrypt.
func (s *SecretboxEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 24 {
		return nil, ozerr.New(ozerr.Decode, "ciphertext shorter than nonce")
	}
	var nonce [24]byte
	copy(nonce[:], ciphertext[:24])
	out, ok := secretbox.Open(nil, ciphertext[24:], &nonce, &s.key)
	if !ok {
		return nil, ozerr.New(ozerr.Mismatch, "secretbox authentication failed")
	}
	return out, nil
}
