// Package crypto seals payment transaction references before they are
// stored. Orders keep the gateway transaction id around for refund
// handling, so it is encrypted at rest and only opened when needed.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const keySize = 32

var (
	ErrMissingKey        = errors.New("encryption key is required")
	ErrKeySize           = errors.New("encryption key must be 32 bytes for AES-256")
	ErrCiphertextInvalid = errors.New("ciphertext is truncated or malformed")
)

// Encryptor seals and opens sensitive string values. The ciphertext format
// is base64(nonce || AES-256-GCM sealed payload).
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type transactionSealer struct {
	aead cipher.AEAD
}

// NewEncryptor builds an AES-256-GCM Encryptor from the configured key.
func NewEncryptor(key string) (Encryptor, error) {
	switch {
	case key == "":
		return nil, ErrMissingKey
	case len(key) != keySize:
		return nil, ErrKeySize
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &transactionSealer{aead: aead}, nil
}

// Encrypt seals value under a fresh random nonce, so equal transaction ids
// never produce equal ciphertexts.
func (s *transactionSealer) Encrypt(value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A value sealed under a different key, or
// tampered with in storage, fails authentication.
func (s *transactionSealer) Decrypt(value string) (string, error) {
	sealed, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertextInvalid, err)
	}

	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", ErrCiphertextInvalid
	}

	opened, err := s.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(opened), nil
}
