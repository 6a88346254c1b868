package state

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate runs all pending database migrations.
func (s *SQLiteStore) Migrate() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	return migrateWithDialect(s.db, "sqlite")
}

// Migrate runs all pending database migrations.
func (s *PostgresStore) Migrate() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	return migrateWithDialect(s.db, "postgres")
}

func migrateWithDialect(db *sql.DB, dialect string) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
