package repo

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/maildrift/maildrift/internal/server/migrations"
)

// Manager owns the Postgres pool and the schema lifecycle.
type Manager struct {
	db *sql.DB
}

// Open connects to Postgres and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Manager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := &Manager{db: db}
	if err := m.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return m, nil
}

// Conn exposes the pool for services that manage their own transactions.
func (m *Manager) Conn() *sql.DB {
	return m.db
}

// RunMigrations applies the embedded goose migrations.
func (m *Manager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, m.db, ".")
}

// Close releases the pool.
func (m *Manager) Close() error {
	return m.db.Close()
}
