package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/amoret/amoret/internal/fault"
)

// Character classes selectable for salt generation. Each flag independently
// toggles one class, mirroring how the salts in existing user rows were made.
const (
	saltDigits  = "0123456789"
	saltLower   = "abcdefghijklmnopqrstuvwxyz"
	saltUpper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	saltSymbols = "~`!@#$%^&*()_+-={}[]:\";'<>?,./|\\"
)

// HashPassword computes the deterministic credential digest: lowercase hex
// of HMAC-SHA512 over the password keyed by the per-user salt. Verification
// recomputes and compares, so there is no per-call randomness.
func HashPassword(password, salt string) (string, error) {
	if password == "" || salt == "" {
		return "", fault.New(fault.KindInvalidInput, "user", "controller", 1008)
	}

	mac := hmac.New(sha512.New, []byte(salt))
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyPassword recomputes the digest and compares in constant time.
func VerifyPassword(digest, salt, password string) (bool, error) {
	if digest == "" || salt == "" || password == "" {
		return false, fault.New(fault.KindInvalidInput, "user", "controller", 1008)
	}

	computed, err := HashPassword(password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1, nil
}

// GenerateSalt draws a random string of the given length from the character
// classes selected by flags in classes: '#' digits, 'a' lowercase,
// 'A' uppercase, '!' symbols.
func GenerateSalt(length int, classes string) (string, error) {
	if length <= 0 {
		return "", fault.New(fault.KindInvalidInput, "user", "controller", 1008)
	}

	var mask string
	if strings.ContainsRune(classes, '#') {
		mask += saltDigits
	}
	if strings.ContainsRune(classes, 'a') {
		mask += saltLower
	}
	if strings.ContainsRune(classes, 'A') {
		mask += saltUpper
	}
	if strings.ContainsRune(classes, '!') {
		mask += saltSymbols
	}
	if mask == "" {
		return "", fault.New(fault.KindInvalidInput, "user", "controller", 1008)
	}

	out := make([]byte, length)
	max := big.NewInt(int64(len(mask)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("salt randomness: %w", err)
		}
		out[i] = mask[n.Int64()]
	}
	return string(out), nil
}
