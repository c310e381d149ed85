package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values written by Seal. Anything without it is treated
// as a plain value stored before sealing was enabled.
const sealedPrefix = "enc:v1:"

// Sealer encrypts provider secrets at rest with AES-256-GCM. A nil Sealer
// passes values through unchanged.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the AES key from secret with SHA-256.
func NewSealer(secret string) (*Sealer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("encryption secret is empty")
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

// Seal returns the prefixed base64 of nonce+ciphertext. Empty and already
// sealed values are returned as is.
func (s *Sealer) Seal(plainText string) (string, error) {
	if s == nil || plainText == "" || IsSealed(plainText) {
		return plainText, nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plainText), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Unprefixed values are legacy plain text and come back unchanged.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	if s == nil {
		return "", errors.New("value is sealed but no encryption secret is configured")
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("sealed value is not valid base64: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("sealed value is too short")
	}

	nonce, cipherText := data[:nonceSize], data[nonceSize:]
	plainText, err := s.aead.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return "", fmt.Errorf("failed to open sealed value: %w", err)
	}
	return string(plainText), nil
}

func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
