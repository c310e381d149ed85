package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// GetMessageDigestOrSignature returns the hex HMAC-SHA256 of msg using key.
func GetMessageDigestOrSignature(msg, key []byte) (string, error) {
	if len(key) == 0 {
		return "", errors.New("signature key is empty")
	}
	mac := hmac.New(sha256.New, key)
	if _, err := mac.Write(msg); err != nil {
		return "", err
	}
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyHubSignature checks an "X-Hub-Signature-256: sha256=<hex>" header in constant time.
func VerifyHubSignature(body []byte, header, secret string) bool {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "sha256=") {
		return false
	}
	expected, err := GetMessageDigestOrSignature(body, []byte(secret))
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(strings.TrimPrefix(header, "sha256=")), []byte(expected))
}
