package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDigest = "3b1f" // stands in for a real password digest

func TestSessionRoundTrip(t *testing.T) {
	svc := NewSessionService("amoret", 15*24*time.Hour)

	token, err := svc.Issue("3f6f4b2e-8e1c-4a4b-9b59-9a9a4a1f2b11", testDigest)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	result := svc.Verify(token, testDigest)
	assert.True(t, result.Valid)
	assert.Equal(t, "3f6f4b2e-8e1c-4a4b-9b59-9a9a4a1f2b11", result.UserID)
}

func TestSessionSecretRotationInvalidates(t *testing.T) {
	svc := NewSessionService("amoret", time.Hour)

	token, err := svc.Issue("user-1", "digest-before")
	require.NoError(t, err)

	// password change rotates the signing secret
	result := svc.Verify(token, "digest-after")
	assert.False(t, result.Valid)
	assert.Empty(t, result.UserID)
}

func TestSessionAbsentInputs(t *testing.T) {
	svc := NewSessionService("amoret", time.Hour)

	assert.False(t, svc.Verify("", testDigest).Valid)
	assert.False(t, svc.Verify("not-a-token", testDigest).Valid)
	assert.False(t, svc.Verify("x.y.z", "").Valid)

	_, err := svc.Issue("", testDigest)
	assert.Error(t, err)
	_, err = svc.Issue("user-1", "")
	assert.Error(t, err)
}

func TestSessionExpiry(t *testing.T) {
	issuedAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc := NewSessionService("amoret", 15*24*time.Hour).
		WithClock(func() time.Time { return issuedAt })

	token, err := svc.Issue("user-1", testDigest)
	require.NoError(t, err)

	assert.True(t, svc.Verify(token, testDigest).Valid)

	svc.WithClock(func() time.Time { return issuedAt.Add(15*24*time.Hour + time.Minute) })
	assert.False(t, svc.Verify(token, testDigest).Valid)
}

func TestSessionIssuerMismatch(t *testing.T) {
	issuer := NewSessionService("amoret", time.Hour)
	other := NewSessionService("someone-else", time.Hour)

	token, err := other.Issue("user-1", testDigest)
	require.NoError(t, err)

	assert.False(t, issuer.Verify(token, testDigest).Valid)
}
