package application

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

// MigrationManager collects module schemas and applies them with goose.
type MigrationManager interface {
	RegisterSchema(fsys fs.FS, dir string)
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Status(ctx context.Context) error
}

type migrationSource struct {
	fsys fs.FS
	dir  string
}

type migrationManager struct {
	pool    *pgxpool.Pool
	logger  *logrus.Logger
	sources []migrationSource
}

func NewMigrationManager(pool *pgxpool.Pool, logger *logrus.Logger) MigrationManager {
	return &migrationManager{pool: pool, logger: logger}
}

func (m *migrationManager) RegisterSchema(fsys fs.FS, dir string) {
	m.sources = append(m.sources, migrationSource{fsys: fsys, dir: dir})
}

func (m *migrationManager) Up(ctx context.Context) error {
	return m.each(ctx, func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.UpContext(ctx, db, dir)
	})
}

// Down rolls back the most recent migration of each registered schema.
func (m *migrationManager) Down(ctx context.Context) error {
	return m.each(ctx, func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.DownContext(ctx, db, dir)
	})
}

func (m *migrationManager) Status(ctx context.Context) error {
	return m.each(ctx, func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.StatusContext(ctx, db, dir)
	})
}

func (m *migrationManager) each(ctx context.Context, fn func(context.Context, *sql.DB, string) error) error {
	if m.pool == nil {
		return fmt.Errorf("migrations: database pool is not configured")
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if m.logger != nil {
		goose.SetLogger(m.logger)
	}
	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()

	for _, src := range m.sources {
		goose.SetBaseFS(src.fsys)
		if err := fn(ctx, db, src.dir); err != nil {
			goose.SetBaseFS(nil)
			return fmt.Errorf("migrations %s: %w", src.dir, err)
		}
	}
	goose.SetBaseFS(nil)
	return nil
}
