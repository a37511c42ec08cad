package user

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoret/amoret/internal/database"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := database.OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.CreateSchema(context.Background(), db))

	return NewRepository(db)
}

func seedUser(email string) *database.User {
	return &database.User{
		Email:    email,
		Password: "digest",
		Salt:     "salt",
		Sex:      "male",
		Role:     database.RoleBaby,
		Age:      25,
	}
}

func TestCreateLowercasesEmail(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	u, err := repo.Create(ctx, seedUser("Nora@Example.COM"))
	require.NoError(t, err)
	assert.Equal(t, "nora@example.com", u.Email)

	found, err := repo.GetByEmail(ctx, "NORA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, seedUser("nora@example.com"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, seedUser("Nora@Example.com"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestGetBySessionToken(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	u, err := repo.Create(ctx, seedUser("nora@example.com"))
	require.NoError(t, err)

	token := "session-token-value"
	_, err = repo.UpdateByID(ctx, u.ID, func(u *database.User) { u.SessionToken = &token }, "session_token")
	require.NoError(t, err)

	found, err := repo.GetBySessionToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = repo.GetBySessionToken(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountByEmailExcludesRemoved(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	u, err := repo.Create(ctx, seedUser("nora@example.com"))
	require.NoError(t, err)

	count, err := repo.CountByEmail(ctx, "NORA@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.Remove(ctx, u))

	count, err = repo.CountByEmail(ctx, "nora@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestGetByIDWithRelation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	u, err := repo.Create(ctx, seedUser("nora@example.com"))
	require.NoError(t, err)

	// no permission yet, relation resolves to nil
	found, err := repo.GetByID(ctx, u.ID, "Permission")
	require.NoError(t, err)
	assert.Nil(t, found.Permission)
}
