/**
 * @description
 * Symmetric encryption for card numbers and CVVs. The configured secret is
 * stretched to a 256-bit key with SHA-256 and used with AES-GCM; each
 * ciphertext carries its own random nonce and is stored base64-encoded.
 */

package app

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
)

var errCiphertextTooShort = errors.New("ciphertext too short")

// CardCipher encrypts and decrypts card secrets with AES-256-GCM.
type CardCipher struct {
	aead cipher.AEAD
}

// NewCardCipher derives the AES key from the configured secret. An empty
// secret is rejected so a misconfigured deployment fails at startup rather
// than storing recoverable card data under a known key.
func NewCardCipher(secret string) (*CardCipher, error) {
	if secret == "" {
		return nil, errors.New("card encryption secret must not be empty")
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &CardCipher{aead: aead}, nil
}

// Encrypt seals the plaintext and returns base64(nonce || ciphertext).
func (c *CardCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *CardCipher) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", errCiphertextTooShort
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
