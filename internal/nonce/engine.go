// Package nonce mints and verifies single-use, purpose-scoped action tokens.
//
// Two strategies exist: verify-email codes are self-validating timed HMAC
// codes bound to the subject id, while review and password-reset tokens are
// symmetric ciphertexts of the subject id under a single-use key string.
package nonce

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/amoret/amoret/internal/database"
)

// VerifyAction names the verification mode. Review covers both the
// pass-review and unpass-review token kinds, which share a strategy.
type VerifyAction string

const (
	VerifyEmail    VerifyAction = "verify-email"
	VerifyForget   VerifyAction = "forget-password"
	VerifyReview   VerifyAction = "review"
	hkdfInfo                    = "amoret-action-token"
	timedRandLen                = 8
	gcmNonceLen                 = 12
)

var (
	ErrEmptyArgument    = errors.New("empty argument")
	ErrUnknownAction    = errors.New("unknown token action")
	ErrMalformedToken   = errors.New("malformed token")
	errStrategyMismatch = errors.New("record action does not match verification mode")
)

// Minted is a constructed (not yet persisted) action token.
type Minted struct {
	Action database.NonceAction
	Key    string
	Value  string
}

// Engine constructs and validates token values. It holds no storage; the
// repository persists what the engine mints.
type Engine struct {
	secret []byte        // MAC key for timed verify-email codes
	window time.Duration // verify-email validity window
	now    func() time.Time
}

func NewEngine(secret []byte, window time.Duration) *Engine {
	return &Engine{
		secret: secret,
		window: window,
		now:    time.Now,
	}
}

// WithClock overrides the engine clock, used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Mint constructs the key/nonce pair for a token of the given kind.
// Pure value construction; nothing is persisted.
func (e *Engine) Mint(userID string, action database.NonceAction) (Minted, error) {
	if userID == "" || action == "" {
		return Minted{}, ErrEmptyArgument
	}

	s, ok := strategyFor(action)
	if !ok {
		return Minted{}, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	key, value, err := s.issue(e, userID, e.now())
	if err != nil {
		return Minted{}, err
	}
	return Minted{Action: action, Key: key, Value: value}, nil
}

// Validate checks a presented token value against its persisted record and
// recovers the subject user id. It does not look at used_at; replay
// protection lives with the repository.
func (e *Engine) Validate(record *database.Nonce, value string, mode VerifyAction) (string, bool, error) {
	if record == nil || value == "" || mode == "" {
		return "", false, ErrEmptyArgument
	}

	switch mode {
	case VerifyEmail:
		if record.Action != database.ActionVerifyEmail {
			return "", false, errStrategyMismatch
		}
		return timedCode{}.verify(e, value, record, e.now())
	case VerifyForget:
		if record.Action != database.ActionForgetPassword {
			return "", false, errStrategyMismatch
		}
		return cipherToken{prefix: "forget-password"}.verify(e, value, record, e.now())
	case VerifyReview:
		switch record.Action {
		case database.ActionPassReview:
			return cipherToken{prefix: "pass"}.verify(e, value, record, e.now())
		case database.ActionUnpassReview:
			return cipherToken{prefix: "unpass"}.verify(e, value, record, e.now())
		default:
			return "", false, errStrategyMismatch
		}
	default:
		return "", false, fmt.Errorf("%w: %s", ErrUnknownAction, mode)
	}
}

// strategy is the per-kind issuance/verification variant.
type strategy interface {
	issue(e *Engine, userID string, now time.Time) (key, value string, err error)
	verify(e *Engine, value string, record *database.Nonce, now time.Time) (userID string, valid bool, err error)
}

func strategyFor(action database.NonceAction) (strategy, bool) {
	switch action {
	case database.ActionVerifyEmail:
		return timedCode{}, true
	case database.ActionPassReview:
		return cipherToken{prefix: "pass"}, true
	case database.ActionUnpassReview:
		return cipherToken{prefix: "unpass"}, true
	case database.ActionForgetPassword:
		return cipherToken{prefix: "forget-password"}, true
	default:
		return nil, false
	}
}

// timedCode is the verify-email strategy: an opaque single-use code carrying
// its own issuance time, MACed with the engine secret and bound to the
// subject id, which is stored as the record key. Validity is enforced from
// the embedded timestamp independently of the persisted used_at flag.
type timedCode struct{}

func (timedCode) issue(e *Engine, userID string, now time.Time) (string, string, error) {
	payload := make([]byte, 8+timedRandLen)
	binary.BigEndian.PutUint64(payload[:8], uint64(now.Unix()))
	if _, err := rand.Read(payload[8:]); err != nil {
		return "", "", fmt.Errorf("random: %w", err)
	}

	mac := timedCodeMAC(e.secret, userID, payload)
	value := base64.RawURLEncoding.EncodeToString(append(payload, mac...))
	return userID, value, nil
}

func (timedCode) verify(e *Engine, value string, record *database.Nonce, now time.Time) (string, bool, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(raw) != 8+timedRandLen+sha256.Size {
		return "", false, ErrMalformedToken
	}

	payload, mac := raw[:8+timedRandLen], raw[8+timedRandLen:]
	issuedAt := time.Unix(int64(binary.BigEndian.Uint64(payload[:8])), 0)

	// the subject id is the stored key
	userID := record.Key

	expected := timedCodeMAC(e.secret, userID, payload)
	if subtle.ConstantTimeCompare(mac, expected) != 1 {
		return userID, false, nil
	}
	if now.Before(issuedAt) || now.Sub(issuedAt) > e.window {
		return userID, false, nil
	}
	return userID, true, nil
}

func timedCodeMAC(secret []byte, userID string, payload []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(userID))
	h.Write(payload)
	return h.Sum(nil)
}

// cipherToken is the reversible strategy: the subject id encrypted under a
// key derived from the single-use key string "{prefix}-{userID}-{millis}".
// Two base64 characters are swapped for URL-safe ones on the wire.
type cipherToken struct {
	prefix string
}

func (c cipherToken) issue(e *Engine, userID string, now time.Time) (string, string, error) {
	key := fmt.Sprintf("%s-%s-%d", c.prefix, userID, now.UnixMilli())

	sealed, err := encryptWithKeyString(key, []byte(userID))
	if err != nil {
		return "", "", err
	}

	value := base64.StdEncoding.EncodeToString(sealed)
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "+", "^")
	return key, value, nil
}

func (c cipherToken) verify(e *Engine, value string, record *database.Nonce, _ time.Time) (string, bool, error) {
	restored := strings.ReplaceAll(value, "_", "/")
	restored = strings.ReplaceAll(restored, "^", "+")

	sealed, err := base64.StdEncoding.DecodeString(restored)
	if err != nil {
		return "", false, ErrMalformedToken
	}

	plaintext, err := decryptWithKeyString(record.Key, sealed)
	if err != nil {
		// wrong key or tampered ciphertext is a verification failure
		return "", false, nil
	}

	userID := string(plaintext)

	// The decrypted subject must match the user-id segment of the stored
	// key exactly. The system this replaces tested a regex of the
	// plaintext against the key, which passes for any substring; exact
	// equality is the intended rule.
	subject, ok := c.subjectFromKey(record.Key)
	if !ok || subject != userID {
		return userID, false, nil
	}
	return userID, true, nil
}

// subjectFromKey extracts the user id from "{prefix}-{userID}-{millis}".
func (c cipherToken) subjectFromKey(key string) (string, bool) {
	rest, found := strings.CutPrefix(key, c.prefix+"-")
	if !found {
		return "", false
	}
	i := strings.LastIndex(rest, "-")
	if i <= 0 {
		return "", false
	}
	return rest[:i], true
}

// encryptWithKeyString seals plaintext with AES-256-GCM under a key derived
// from the key string, random GCM nonce prepended.
func encryptWithKeyString(keyString string, plaintext []byte) ([]byte, error) {
	aead, err := aeadFromKeyString(keyString)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("random: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithKeyString(keyString string, sealed []byte) ([]byte, error) {
	if len(sealed) < gcmNonceLen {
		return nil, ErrMalformedToken
	}

	aead, err := aeadFromKeyString(keyString)
	if err != nil {
		return nil, err
	}

	return aead.Open(nil, sealed[:gcmNonceLen], sealed[gcmNonceLen:], nil)
}

// aeadFromKeyString derives a 32-byte AES key from the textual key via HKDF.
func aeadFromKeyString(keyString string) (cipher.AEAD, error) {
	kdf := hkdf.New(sha256.New, []byte(keyString), nil, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
