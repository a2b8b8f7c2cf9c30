// Package migrations хранит SQL-миграции схемы, встроенные в бинарь.
package migrations

import "embed"

// PostgresMigrations - миграции для PostgreSQL (каталог "postgres")
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS

// SQLiteMigrations - миграции для локального файла SQLite (каталог "sqlite")
//
//go:embed sqlite/*.sql
var SQLiteMigrations embed.FS
