package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, CreateSchema(context.Background(), db))
	return db
}

func testUser(email string) *User {
	return &User{
		Email:    email,
		Password: "digest",
		Salt:     "salt",
		Sex:      "female",
		Role:     RoleBaby,
		Age:      30,
	}
}

func byEmail(email string) Query {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email = ?", email)
	}
}

func TestRepoCreateAssignsID(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo[User](db)
	ctx := context.Background()

	created, err := repo.Create(ctx, testUser("a@example.com"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	found, err := repo.ByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", found.Email)
}

func TestRepoOneNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo[User](db)

	_, err := repo.One(context.Background(), byEmail("nobody@example.com"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepoByIDLoadsRelation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := NewRepo[User](db)
	perms := NewRepo[Permission](db)

	u, err := users.Create(ctx, testUser("a@example.com"))
	require.NoError(t, err)
	_, err = perms.Create(ctx, &Permission{OwnerID: u.ID, Preferences: "{}"})
	require.NoError(t, err)

	found, err := users.ByID(ctx, u.ID, "Permission")
	require.NoError(t, err)
	require.NotNil(t, found.Permission)
	assert.Equal(t, u.ID, found.Permission.OwnerID)
}

func TestRepoAllAndCount(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo[User](db)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := repo.Create(ctx, testUser(email))
		require.NoError(t, err)
	}

	all, total, err := repo.AllAndCount(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 3, total)

	count, err := repo.Count(ctx, byEmail("a@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepoFindOrCreate(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo[User](db)
	ctx := context.Background()

	first, created, err := repo.FindOrCreate(ctx, testUser("a@example.com"), byEmail("a@example.com"))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.FindOrCreate(ctx, testUser("a@example.com"), byEmail("a@example.com"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestRepoAggregate(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo[User](db)
	ctx := context.Background()

	for i, candy := range []int{5, 10, 25} {
		u := testUser(string(rune('a'+i)) + "@example.com")
		u.Candy = candy
		_, err := repo.Create(ctx, u)
		require.NoError(t, err)
	}

	sum, err := repo.Aggregate(ctx, "sum", "candy")
	require.NoError(t, err)
	assert.Equal(t, float64(40), sum)

	max, err := repo.Aggregate(ctx, "max", "candy")
	require.NoError(t, err)
	assert.Equal(t, float64(25), max)

	_, err = repo.Aggregate(ctx, "avg", "candy")
	assert.Error(t, err)
}

func TestRepoUpdateNamedColumnsOnly(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo[User](db)
	ctx := context.Background()

	u, err := repo.Create(ctx, testUser("a@example.com"))
	require.NoError(t, err)

	u.Candy = 99
	u.DisplayName = "should not persist"
	_, err = repo.Update(ctx, u, "candy")
	require.NoError(t, err)

	fresh, err := repo.ByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 99, fresh.Candy)
	assert.Empty(t, fresh.DisplayName)
}

func TestRepoUpdateMissingRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo[User](db)

	ghost := testUser("ghost@example.com")
	ghost.ID = uuid.New()
	_, err := repo.Update(context.Background(), ghost, "candy")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepoRemoveSoftDeletes(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo[User](db)
	ctx := context.Background()

	u, err := repo.Create(ctx, testUser("a@example.com"))
	require.NoError(t, err)

	require.NoError(t, repo.Remove(ctx, u))

	_, err = repo.ByID(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// the row survives physically, excluded from default selects
	count, err := db.NewSelect().Model((*User)(nil)).WhereAllWithDeleted().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunInTxCommit(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo[User](db)
	ctx := context.Background()

	err := RunInTx(ctx, db, func(ctx context.Context, tx bun.IDB) error {
		_, err := repo.WithTx(tx).Create(ctx, testUser("a@example.com"))
		return err
	})
	require.NoError(t, err)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunInTxRollback(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo[User](db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := RunInTx(ctx, db, func(ctx context.Context, tx bun.IDB) error {
		if _, err := repo.WithTx(tx).Create(ctx, testUser("a@example.com")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// nothing persisted from the failed unit of work
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
