package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// keyPattern allows alphanumerics, hyphens and underscores
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateKey checks an idempotency key against maxLength and the allowed alphabet
func ValidateKey(key string, maxLength int) error {
	if key == "" {
		return ErrKeyRequired
	}
	if len(key) > maxLength {
		return ErrKeyTooLong
	}
	if !keyPattern.MatchString(key) {
		return ErrKeyInvalid
	}
	return nil
}

// ComputeFingerprint hashes the method, route and body of a request so a
// key reused for a different request is detected
func ComputeFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeKey trims surrounding whitespace
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}
