package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	// database drivers
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqliteSchema mirrors the postgres migrations for the sqlite3 backend,
// which is used by tests and single-binary deployments.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS webhook_deliveries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	delivery_id TEXT NOT NULL,
	event TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (source, delivery_id)
);
CREATE TABLE IF NOT EXISTS pr_mappings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	gitea_repo TEXT NOT NULL,
	gitea_pr_number INTEGER NOT NULL,
	github_repo TEXT NOT NULL,
	github_pr_number INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (gitea_repo, gitea_pr_number)
);
CREATE TABLE IF NOT EXISTS processed_reviews (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	github_repo TEXT NOT NULL,
	github_pr_number INTEGER NOT NULL,
	github_review_id INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (github_repo, github_pr_number, github_review_id)
);`

// Open connects to the configured database, applies the schema, and returns
// the connection with a cleanup function.
func Open(driver, url string, logger *slog.Logger) (*sqlx.DB, func(), error) {
	conn, err := sqlx.Connect(driver, url)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch driver {
	case "postgres":
		logger.Info("running database migrations")
		if err := runMigrations(conn); err != nil {
			_ = conn.Close()
			return nil, func() {}, fmt.Errorf("failed to run migrations: %w", err)
		}
	case "sqlite3":
		// An in-memory sqlite database exists per connection; a second
		// pooled connection would see empty tables.
		conn.SetMaxOpenConns(1)
		if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
			_ = conn.Close()
			return nil, func() {}, fmt.Errorf("failed to create sqlite schema: %w", err)
		}
	default:
		_ = conn.Close()
		return nil, func() {}, fmt.Errorf("unsupported database driver: %s", driver)
	}

	cleanup := func() {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close database connection", "error", err)
		}
	}
	return conn, cleanup, nil
}

func runMigrations(conn *sqlx.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(conn.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
