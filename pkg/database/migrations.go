package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"fueltracker/pkg/config"
	"fueltracker/pkg/logger"
)

// Migrator управляет миграциями схемы через goose Provider
type Migrator struct {
	provider *goose.Provider
	db       *sql.DB
	ownsDB   bool
}

// NewMigrator создаёт мигратор поверх произвольного *sql.DB.
// fsys - встроенная ФС, dir - подкаталог с .sql файлами.
func NewMigrator(dialect goose.Dialect, db *sql.DB, fsys fs.FS, dir string) (*Migrator, error) {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations dir %q: %w", dir, err)
	}

	provider, err := goose.NewProvider(dialect, db, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	return &Migrator{provider: provider, db: db}, nil
}

// NewPostgresMigrator создаёт мигратор поверх pgx пула
func NewPostgresMigrator(pool *pgxpool.Pool, fsys fs.FS, dir string) (*Migrator, error) {
	db := stdlib.OpenDBFromPool(pool)
	m, err := NewMigrator(goose.DialectPostgres, db, fsys, dir)
	if err != nil {
		db.Close()
		return nil, err
	}
	m.ownsDB = true
	return m, nil
}

// Up применяет все миграции
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Log.Info("Migrations applied successfully", "applied", len(results))
	return nil
}

// Down откатывает последнюю миграцию
func (m *Migrator) Down(ctx context.Context) error {
	if _, err := m.provider.Down(ctx); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	logger.Log.Info("Migration rolled back successfully")
	return nil
}

// Version возвращает текущую версию схемы
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

// Pending сообщает, есть ли непримененные миграции
func (m *Migrator) Pending(ctx context.Context) (bool, error) {
	return m.provider.HasPending(ctx)
}

// Close освобождает *sql.DB, если мигратор открыл его сам
func (m *Migrator) Close() error {
	if m.ownsDB {
		return m.db.Close()
	}
	return nil
}

// RunMigrations запускает миграции если включено в конфигурации
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, cfg *config.DatabaseConfig, fsys fs.FS, dir string) error {
	if !cfg.AutoMigrate {
		logger.Log.Info("Auto-migration is disabled")
		return nil
	}

	migrator, err := NewPostgresMigrator(pool, fsys, dir)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Up(ctx)
}
