package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

func prepareGoose() error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("internal/database: goose dialect: %w", err)
	}
	return nil
}

// Migrate applies all pending schema migrations.
func Migrate(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return Up(db)
}

// Reset rolls every migration back. Tests use it to start from a clean schema.
func Reset(db *sql.DB) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	if err := goose.Reset(db, migrationsDir); err != nil {
		return fmt.Errorf("internal/database: goose reset: %w", err)
	}
	return nil
}

// Up applies all migrations on an already opened handle.
func Up(db *sql.DB) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("internal/database: goose up: %w", err)
	}
	return nil
}
