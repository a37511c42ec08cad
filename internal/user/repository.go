// Package user persists identity records.
package user

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/amoret/amoret/internal/database"
)

var (
	ErrNotFound       = database.ErrNotFound
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository handles user data persistence.
type Repository struct {
	repo *database.Repo[database.User]
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{repo: database.NewRepo[database.User](db)}
}

// WithTx returns a repository bound to the given transaction handle.
func (r *Repository) WithTx(tx bun.IDB) *Repository {
	return &Repository{repo: r.repo.WithTx(tx)}
}

// Create inserts a new user. Emails are stored lowercase and unique.
func (r *Repository) Create(ctx context.Context, u *database.User) (*database.User, error) {
	u.Email = strings.ToLower(u.Email)

	created, err := r.repo.Create(ctx, u)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") ||
			strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a user, eager-loading the named relations ("Permission").
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, relations ...string) (*database.User, error) {
	return r.repo.ByID(ctx, id, relations...)
}

// GetByEmail retrieves a user by its lowercase email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*database.User, error) {
	email = strings.ToLower(email)
	return r.repo.One(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email = ?", email)
	})
}

// GetBySessionToken resolves a user from its current session token with the
// permission record eager-loaded, as the authorization middleware needs both.
func (r *Repository) GetBySessionToken(ctx context.Context, token string) (*database.User, error) {
	return r.repo.One(ctx,
		func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.session_token = ?", token)
		},
		database.WithRelation("Permission"),
	)
}

// Update persists the named columns of an already-loaded user.
func (r *Repository) Update(ctx context.Context, u *database.User, columns ...string) (*database.User, error) {
	return r.repo.Update(ctx, u, columns...)
}

// UpdateByID resolves the user first, applies mutate and persists columns.
func (r *Repository) UpdateByID(ctx context.Context, id uuid.UUID, mutate func(*database.User), columns ...string) (*database.User, error) {
	return r.repo.UpdateByID(ctx, id, mutate, columns...)
}

// Remove soft-deletes the user record.
func (r *Repository) Remove(ctx context.Context, u *database.User) error {
	return r.repo.Remove(ctx, u)
}

// CountByEmail reports whether an email is already taken, soft-deleted
// accounts excluded.
func (r *Repository) CountByEmail(ctx context.Context, email string) (int, error) {
	email = strings.ToLower(email)
	return r.repo.Count(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email = ?", email)
	})
}
