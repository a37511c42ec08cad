package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/amoret/amoret/internal/fault"
)

// SessionClaims is the payload of a session token: just the user id plus
// the registered issuer/expiry claims.
type SessionClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenResult is the verification outcome. A malformed or expired token is
// Valid=false, never an error: callers branch on the boolean.
type TokenResult struct {
	Valid  bool
	UserID string
}

// SessionService issues and verifies session tokens. Tokens are signed with
// the user's current password digest as the per-user secret, so changing the
// password implicitly invalidates every outstanding session.
type SessionService struct {
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionService(issuer string, ttl time.Duration) *SessionService {
	return &SessionService{issuer: issuer, ttl: ttl, now: time.Now}
}

// WithClock overrides the service clock, used by tests.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// Issue signs a session token for the user under the given secret.
func (s *SessionService) Issue(userID, secret string) (string, error) {
	if userID == "" || secret == "" {
		return "", fault.New(fault.KindInvalidInput, "user", "controller", 1018)
	}

	issuedAt := s.now()
	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Verify validates signature and expiry against the secret. Absent inputs
// and any parse failure yield Valid=false.
func (s *SessionService) Verify(tokenString, secret string) TokenResult {
	if tokenString == "" || secret == "" {
		return TokenResult{Valid: false}
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return TokenResult{Valid: false}
	}

	return TokenResult{Valid: true, UserID: claims.UserID}
}
