// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateResetToken returns a hex token for password reset links.
func GenerateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
