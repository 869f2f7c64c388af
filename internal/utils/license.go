// internal/utils/license.go
package utils

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// License numbers look like LIC-2026-PRV-483920-7F: prefix, calendar year,
// type code, 6-digit random component, and a 2-char checksum over the rest.
// The random component does not guarantee global uniqueness; callers must
// treat a unique-constraint violation on insert as a signal to regenerate.

const (
	licenseRandomMin = 100000
	licenseRandomMax = 999999
)

func licenseTypeCode(appType string) string {
	switch appType {
	case "PROVIDER":
		return "PRV"
	case "PROFESSIONAL":
		return "PRO"
	default:
		return "EST"
	}
}

// GenerateLicenseNumber composes a new checksummed license number for the
// given application type.
func GenerateLicenseNumber(prefix, appType string) (string, error) {
	span := big.NewInt(licenseRandomMax - licenseRandomMin + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	random := licenseRandomMin + n.Int64()

	base := fmt.Sprintf("%s-%d-%s-%06d", prefix, time.Now().Year(), licenseTypeCode(appType), random)
	return base + "-" + licenseChecksum(base), nil
}

// VerifyLicenseNumberChecksum recomputes the checksum suffix and reports
// whether it matches.
func VerifyLicenseNumberChecksum(licenseNumber string) bool {
	idx := strings.LastIndex(licenseNumber, "-")
	if idx <= 0 || idx == len(licenseNumber)-1 {
		return false
	}
	base, checksum := licenseNumber[:idx], licenseNumber[idx+1:]
	return licenseChecksum(base) == checksum
}

func licenseChecksum(base string) string {
	sum := sha1.Sum([]byte(base))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:2])
}

// GenerateVerificationHash returns the deterministic public digest of a
// license number. Recomputing it from a presented number and comparing with
// the stored value proves authenticity without exposing internal state.
func GenerateVerificationHash(licenseNumber string) string {
	sum := sha256.Sum256([]byte(licenseNumber))
	return hex.EncodeToString(sum[:])
}
