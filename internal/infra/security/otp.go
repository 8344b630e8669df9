package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	otpMin = 100000
	otpMax = 999999

	otpSaltLength = 16
)

// GenerateOTP returns a 6-digit numeric code in [100000, 999999] drawn
// from a uniform random source.
func GenerateOTP() (string, error) {
	span := big.NewInt(otpMax - otpMin + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// HashOTP produces a salted SHA-256 digest of the code along with the
// salt used, both hex-encoded.
func HashOTP(code string) (hash, salt string, err error) {
	buf := make([]byte, otpSaltLength)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate otp salt: %w", err)
	}

	salt = hex.EncodeToString(buf)
	return digestOTP(code, salt), salt, nil
}

// VerifyOTP recomputes the salted digest and compares it to the stored
// hash in constant time.
func VerifyOTP(code, hash, salt string) bool {
	if code == "" || hash == "" || salt == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(digestOTP(code, salt)), []byte(hash)) == 1
}

func digestOTP(code, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + code))
	return hex.EncodeToString(sum[:])
}
