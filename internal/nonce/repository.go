package nonce

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/amoret/amoret/internal/database"
)

var ErrNotFound = database.ErrNotFound

// Repository handles action-token persistence. Records are never physically
// deleted; consumption stamps used_at and removal soft-deletes.
type Repository struct {
	repo *database.Repo[database.Nonce]
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{repo: database.NewRepo[database.Nonce](db)}
}

// WithTx returns a repository bound to the given transaction handle.
func (r *Repository) WithTx(tx bun.IDB) *Repository {
	return &Repository{repo: r.repo.WithTx(tx)}
}

// Create persists a minted token.
func (r *Repository) Create(ctx context.Context, minted Minted) (*database.Nonce, error) {
	if minted.Key == "" || minted.Value == "" || minted.Action == "" {
		return nil, ErrEmptyArgument
	}

	return r.repo.Create(ctx, &database.Nonce{
		Key:    minted.Key,
		Value:  minted.Value,
		Action: minted.Action,
	})
}

// GetByValue resolves the record holding the public token value.
func (r *Repository) GetByValue(ctx context.Context, value string) (*database.Nonce, error) {
	if value == "" {
		return nil, ErrEmptyArgument
	}
	return r.repo.One(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.nonce = ?", value)
	})
}

// MarkUsed stamps the consumption timestamp. Must run inside the same
// transaction as the workflow mutation the token authorizes.
func (r *Repository) MarkUsed(ctx context.Context, n *database.Nonce, at time.Time) (*database.Nonce, error) {
	n.UsedAt = &at
	return r.repo.Update(ctx, n, "used_at")
}

// Update persists the named columns of an already-loaded record.
func (r *Repository) Update(ctx context.Context, n *database.Nonce, columns ...string) (*database.Nonce, error) {
	return r.repo.Update(ctx, n, columns...)
}

// UpdateByID resolves the record first, applies mutate and persists columns.
func (r *Repository) UpdateByID(ctx context.Context, id uuid.UUID, mutate func(*database.Nonce), columns ...string) (*database.Nonce, error) {
	return r.repo.UpdateByID(ctx, id, mutate, columns...)
}

// Remove soft-deletes the record.
func (r *Repository) Remove(ctx context.Context, n *database.Nonce) error {
	return r.repo.Remove(ctx, n)
}
