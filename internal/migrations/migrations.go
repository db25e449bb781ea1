package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	goosedb "github.com/pressly/goose/v3/database"
)

//go:embed app/*.sql analytics/*.sql
var embedded embed.FS

// Run applies all pending application migrations (games, admins) against db.
func Run(ctx context.Context, db *sql.DB) error {
	return up(ctx, db, "app", goosedb.DialectSQLite3, "goose_db_version")
}

// RunAnalytics applies the analytics schema. It keeps its own version table
// so it can share a database with the application schema. driver is
// "sqlite" or "postgres".
func RunAnalytics(ctx context.Context, db *sql.DB, driver string) error {
	dialect := goosedb.DialectSQLite3
	if driver == "postgres" {
		dialect = goosedb.DialectPostgres
	}
	return up(ctx, db, "analytics", dialect, "analytics_db_version")
}

func up(ctx context.Context, db *sql.DB, dir string, dialect goosedb.Dialect, table string) error {
	sub, err := fs.Sub(embedded, dir)
	if err != nil {
		return fmt.Errorf("opening %s migrations: %w", dir, err)
	}
	store, err := goosedb.NewStore(dialect, table)
	if err != nil {
		return fmt.Errorf("creating version store: %w", err)
	}
	p, err := goose.NewProvider("", db, sub, goose.WithStore(store))
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("running %s migrations: %w", dir, err)
	}
	return nil
}
