// Package testutil prepares a Postgres database for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/johndosdos/synapse/internal/database"
)

func ProjectRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "../../")
}

// DbInit connects to TEST_DB_URL and migrates a fresh schema. The test is
// skipped when no test database is configured. The schema is reset again
// when the test finishes.
func DbInit(t *testing.T) *pgxpool.Pool {
	t.Helper()

	_ = godotenv.Load(filepath.Join(ProjectRoot(), ".env"))

	testURL := os.Getenv("TEST_DB_URL")
	if testURL == "" {
		t.Skip("TEST_DB_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbPool, err := pgxpool.New(ctx, testURL)
	if err != nil {
		t.Fatalf("could not connect to the postgresql database: %v", err)
	}

	dbForGoose := stdlib.OpenDBFromPool(dbPool)
	if err := database.Reset(dbForGoose); err != nil {
		dbForGoose.Close()
		t.Fatalf("database.Reset() error = %+v", err)
	}
	if err := database.Up(dbForGoose); err != nil {
		dbForGoose.Close()
		t.Fatalf("database.Up() error = %+v", err)
	}

	t.Cleanup(func() { DbCleanup(t, dbPool, dbForGoose) })

	return dbPool
}

func DbCleanup(t *testing.T, pool *pgxpool.Pool, dbForGoose *sql.DB) {
	if err := database.Reset(dbForGoose); err != nil {
		t.Errorf("database.Reset() error = %+v", err)
	}
	if err := dbForGoose.Close(); err != nil {
		t.Errorf("db.Close() error = %+v", err)
	}
	pool.Close()
}
