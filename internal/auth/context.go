package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/amoret/amoret/internal/database"
)

type contextKey string

const (
	currentUserKey  contextKey = "auth.current_user"
	targetUserKey   contextKey = "auth.target_user"
	nonceRecordKey  contextKey = "auth.nonce_record"
	nonceSubjectKey contextKey = "auth.nonce_subject"
)

// WithCurrentUser stores the authenticated caller.
func WithCurrentUser(ctx context.Context, u *database.User) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

// CurrentUser returns the authenticated caller, nil when the request did not
// pass the login gate.
func CurrentUser(ctx context.Context) *database.User {
	u, _ := ctx.Value(currentUserKey).(*database.User)
	return u
}

// WithTargetUser stores the user the request operates on. For member calls
// this is the caller itself; admins may target someone else.
func WithTargetUser(ctx context.Context, u *database.User) context.Context {
	return context.WithValue(ctx, targetUserKey, u)
}

// TargetUser returns the user the request operates on.
func TargetUser(ctx context.Context) *database.User {
	u, _ := ctx.Value(targetUserKey).(*database.User)
	return u
}

// WithNonce stores the consumed-token record and its recovered subject for
// the handler to finalize.
func WithNonce(ctx context.Context, record *database.Nonce, subject uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, nonceRecordKey, record)
	return context.WithValue(ctx, nonceSubjectKey, subject)
}

// NonceRecord returns the verified token record attached by the action-token
// gate.
func NonceRecord(ctx context.Context) *database.Nonce {
	n, _ := ctx.Value(nonceRecordKey).(*database.Nonce)
	return n
}

// NonceSubject returns the user id recovered from the verified token.
func NonceSubject(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(nonceSubjectKey).(uuid.UUID)
	return id
}
