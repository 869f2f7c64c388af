// internal/utils/license_test.go
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var licenseNumberPattern = regexp.MustCompile(`^LIC-\d{4}-(PRV|PRO|EST)-\d{6}-[0-9A-F]{2}$`)

func TestGenerateLicenseNumberFormat(t *testing.T) {
	cases := map[string]string{
		"PROVIDER":      "PRV",
		"PROFESSIONAL":  "PRO",
		"ESTABLISHMENT": "EST",
	}

	for appType, code := range cases {
		number, err := GenerateLicenseNumber("LIC", appType)
		require.NoError(t, err)

		assert.Regexp(t, licenseNumberPattern, number)
		assert.Contains(t, number, "-"+code+"-")
		assert.Contains(t, number, fmt.Sprintf("-%d-", time.Now().Year()))
	}
}

func TestGenerateLicenseNumberRandomRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		number, err := GenerateLicenseNumber("LIC", "PROVIDER")
		require.NoError(t, err)

		parts := strings.Split(number, "-")
		require.Len(t, parts, 5)

		random, err := strconv.Atoi(parts[3])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, random, 100000)
		assert.LessOrEqual(t, random, 999999)
	}
}

func TestVerifyLicenseNumberChecksum(t *testing.T) {
	number, err := GenerateLicenseNumber("LIC", "ESTABLISHMENT")
	require.NoError(t, err)

	assert.True(t, VerifyLicenseNumberChecksum(number))

	// Flipping the checksum must break verification.
	tampered := number[:len(number)-2] + "00"
	if strings.HasSuffix(number, "00") {
		tampered = number[:len(number)-2] + "11"
	}
	assert.False(t, VerifyLicenseNumberChecksum(tampered))

	// Altering the body invalidates the original checksum almost always;
	// assert the specific failure modes that are deterministic.
	assert.False(t, VerifyLicenseNumberChecksum(""))
	assert.False(t, VerifyLicenseNumberChecksum("LIC-2026"))
	assert.False(t, VerifyLicenseNumberChecksum("not a license number"))
}

func TestGenerateVerificationHash(t *testing.T) {
	hash := GenerateVerificationHash("LIC-2026-PRV-123456-AB")

	sum := sha256.Sum256([]byte("LIC-2026-PRV-123456-AB"))
	assert.Equal(t, hex.EncodeToString(sum[:]), hash)
	assert.Len(t, hash, 64)
}

func TestCustomPrefix(t *testing.T) {
	number, err := GenerateLicenseNumber("ACCR", "PROFESSIONAL")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(number, "ACCR-"))
	assert.True(t, VerifyLicenseNumberChecksum(number))
}
