package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/safeedu/go-auth"
)

// Driver names a supported database backend
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// DetectDriver infers the backend from a DSN
func DetectDriver(dsn string) (Driver, error) {
	d := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(d, "postgres://"), strings.HasPrefix(d, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(d, "file:"), strings.HasPrefix(d, ":memory:"),
		strings.HasSuffix(d, ".db"), strings.HasSuffix(d, ".sqlite"), strings.HasSuffix(d, ".sqlite3"):
		return DriverSQLite, nil
	case strings.HasPrefix(d, "sqlite://"):
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database dsn %q", dsn)
	}
}

// Open connects to dsn and returns a bun handle with the matching dialect
func Open(dsn string) (*bun.DB, error) {
	driver, err := DetectDriver(dsn)
	if err != nil {
		return nil, err
	}

	switch driver {
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		dsn = strings.TrimPrefix(dsn, "sqlite://")
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, err
		}
		// every connection to an in-memory database is a new database
		if strings.Contains(dsn, ":memory:") {
			sqldb.SetMaxOpenConns(1)
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}
}

// Models lists the tables owned by the service
func Models() []any {
	return []any{
		(*auth.Student)(nil),
		(*auth.Citizen)(nil),
		(*auth.Admin)(nil),
		(*auth.PhoneNumberClaim)(nil),
	}
}

// CreateSchema creates missing tables
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// DropSchema removes the service tables
func DropSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range Models() {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", model, err)
		}
	}
	return nil
}
