package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fueltracker/migrations"
	"fueltracker/pkg/config"
	"fueltracker/pkg/database"
	"fueltracker/pkg/logger"
)

// RepositoryType тип репозитория
type RepositoryType string

const (
	RepositoryTypeMemory   RepositoryType = "memory"
	RepositoryTypePostgres RepositoryType = "postgres"
	RepositoryTypeSQLite   RepositoryType = "sqlite"
)

// Repositories контейнер репозиториев
type Repositories struct {
	Driver    RepositoryType
	Records   RecordRepository
	Users     UserRepository
	Blacklist TokenBlacklist

	pg  *database.PostgresDB
	sql *sql.DB
}

// Close закрывает соединения
func (r *Repositories) Close() error {
	if r.pg != nil {
		r.pg.Close()
	}
	if r.sql != nil {
		return r.sql.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища
func (r *Repositories) Ping(ctx context.Context) error {
	switch {
	case r.pg != nil:
		return r.pg.Ping(ctx)
	case r.sql != nil:
		return r.sql.PingContext(ctx)
	default:
		return nil
	}
}

// StartPurge периодически чистит истёкшие токены до отмены ctx
func (r *Repositories) StartPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := r.Blacklist.Purge(ctx)
				if err != nil {
					logger.Log.Warn("Blacklist purge failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Log.Debug("Blacklist purged", "removed", n)
				}
			}
		}
	}()
}

// NewRepositories создаёт репозитории на основе конфигурации
func NewRepositories(ctx context.Context, cfg *config.DatabaseConfig) (*Repositories, error) {
	switch RepositoryType(cfg.Driver) {
	case RepositoryTypeMemory, "":
		return NewMemoryRepositories(), nil

	case RepositoryTypePostgres, "postgresql":
		return newPostgresRepositories(ctx, cfg)

	case RepositoryTypeSQLite:
		return NewSQLiteRepositories(ctx, cfg.Database)

	default:
		return nil, fmt.Errorf("unsupported repository type: %s", cfg.Driver)
	}
}

// NewMemoryRepositories репозитории в памяти процесса
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		Driver:    RepositoryTypeMemory,
		Records:   NewMemoryRecordRepository(),
		Users:     NewMemoryUserRepository(),
		Blacklist: NewMemoryTokenBlacklist(),
	}
}

// NewSQLiteRepositories открывает файл SQLite и применяет миграции
func NewSQLiteRepositories(ctx context.Context, path string) (*Repositories, error) {
	db, err := database.OpenSQLite(ctx, path, migrations.SQLiteMigrations, "sqlite")
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Opened SQLite store", "path", path)

	return &Repositories{
		Driver:    RepositoryTypeSQLite,
		Records:   NewSQLiteRecordRepository(db),
		Users:     NewSQLiteUserRepository(db),
		Blacklist: NewSQLiteTokenBlacklist(db),
		sql:       db,
	}, nil
}

func newPostgresRepositories(ctx context.Context, cfg *config.DatabaseConfig) (*Repositories, error) {
	db, err := database.NewPostgresDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := database.RunMigrations(ctx, db.Pool(), cfg, migrations.PostgresMigrations, "postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Repositories{
		Driver:    RepositoryTypePostgres,
		Records:   NewPostgresRecordRepository(db),
		Users:     NewPostgresUserRepository(db),
		Blacklist: NewPostgresTokenBlacklist(db),
		pg:        db,
	}, nil
}
