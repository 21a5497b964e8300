// Package keywrap seals key material before it reaches the database and
// unseals it on the way out. Copies of the same key share one sealed blob
// format, so sharing can duplicate rows without ever opening them.
package keywrap

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

const (
	kdfIterations = 100000
	kdfKeyLen     = 32
)

// kdfSalt is fixed per service; the per-row nonce provides uniqueness.
var kdfSalt = []byte("qumail_keystore_salt_v1")

// Cipher seals and opens key material with AES-256-GCM under a key derived
// from the service secret.
type Cipher struct {
	aead cipher.AEAD
}

// New derives the sealing key from secret with PBKDF2-SHA256.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, keyerrors.New(keyerrors.KindInvalidArgument, "sealing secret must not be empty")
	}

	derived := pbkdf2.Key([]byte(secret), kdfSalt, kdfIterations, kdfKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, keyerrors.Wrap(keyerrors.KindDependency, "initialize sealing cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, keyerrors.Wrap(keyerrors.KindDependency, "initialize sealing cipher", err)
	}

	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext with a fresh random nonce. The nonce is prepended
// to the returned blob.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, keyerrors.Wrap(keyerrors.KindDependency, "draw sealing nonce", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal. A wrong secret or a tampered blob
// fails closed with a dependency error, never with garbage plaintext.
func (c *Cipher) Open(sealed []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize+c.aead.Overhead() {
		return nil, keyerrors.New(keyerrors.KindDependency, "sealed key material truncated")
	}
	plaintext, err := c.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, keyerrors.Wrap(keyerrors.KindDependency, "unseal key material", err)
	}
	return plaintext, nil
}
