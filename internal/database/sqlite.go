package database

import (
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenSQLite opens a SQLite-backed bun.DB. Used by the test suites and
// handy for local development without a postgres instance.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqlDB, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	// in-memory databases vanish when the last connection closes
	sqlDB.SetMaxIdleConns(1000)
	sqlDB.SetConnMaxLifetime(0)

	return bun.NewDB(sqlDB, sqlitedialect.New()), nil
}
