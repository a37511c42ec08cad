package permission

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/amoret/amoret/internal/database"
)

var ErrNotFound = database.ErrNotFound

// Repository handles permission data persistence.
type Repository struct {
	repo *database.Repo[database.Permission]
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{repo: database.NewRepo[database.Permission](db)}
}

// WithTx returns a repository bound to the given transaction handle.
func (r *Repository) WithTx(tx bun.IDB) *Repository {
	return &Repository{repo: r.repo.WithTx(tx)}
}

// Create inserts a permission for its owner, seeding the default preference
// blob when none was provided. New accounts start under review with the
// entitlement horizon at creation time.
func (r *Repository) Create(ctx context.Context, p *database.Permission) (*database.Permission, error) {
	if p.Preferences == "" {
		encoded, err := DefaultPreferences().Encode()
		if err != nil {
			return nil, err
		}
		p.Preferences = encoded
	}
	p.InfoUnreadMessage = true
	p.InfoSeeProfile = true
	p.Warning = false
	p.UnderReview = true
	return r.repo.Create(ctx, p)
}

// GetByOwner resolves the permission owned by the given user.
func (r *Repository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*database.Permission, error) {
	return r.repo.One(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.owner_id = ?", ownerID)
	})
}

// Update persists the named columns of an already-loaded permission.
func (r *Repository) Update(ctx context.Context, p *database.Permission, columns ...string) (*database.Permission, error) {
	return r.repo.Update(ctx, p, columns...)
}

// Remove soft-deletes the permission record.
func (r *Repository) Remove(ctx context.Context, p *database.Permission) error {
	return r.repo.Remove(ctx, p)
}
