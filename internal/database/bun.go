package database

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// NewBunDB creates a new Bun DB instance from an existing sql.DB connection.
func NewBunDB(sqlDB *sql.DB) *bun.DB {
	return bun.NewDB(sqlDB, pgdialect.New())
}

// RunInTx runs fn inside a single transaction. Every store mutation issued
// through the handle commits or rolls back as one unit; side effects such as
// notifications must be dispatched by the caller only after RunInTx returns
// without error.
func RunInTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context, tx bun.IDB) error) error {
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// CreateSchema creates the application tables when they do not exist yet.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*User)(nil),
		(*Permission)(nil),
		(*Nonce)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
