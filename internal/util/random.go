package util

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateRandomString returns a URL-safe string built from n random bytes.
func GenerateRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
