// Package postgres applies the embedded goose migrations for the Postgres
// storage backend.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"slotswap/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var migrations embed.FS

type Migrator struct {
	db  *sql.DB
	log *logger.Logger
}

// NewMigrator opens a database/sql handle over pool for goose. Closing the
// migrator leaves the pool open.
func NewMigrator(pool *pgxpool.Pool, log *logger.Logger) (*Migrator, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Migrator{
		db:  stdlib.OpenDBFromPool(pool),
		log: log,
	}, nil
}

func (m *Migrator) Up(ctx context.Context) error {
	m.log.Info("Applying Postgres migrations")
	if err := goose.UpContext(ctx, m.db, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := m.Version(ctx)
	if err != nil {
		return err
	}
	m.log.Info("Postgres migrations applied successfully", "version", version)
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := goose.DownContext(ctx, m.db, migrationsDir); err != nil {
		return fmt.Errorf("roll back migration: %w", err)
	}
	m.log.Info("Rolled back one Postgres migration")
	return nil
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}

func (m *Migrator) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
