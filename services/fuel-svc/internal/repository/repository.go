// Package repository хранит записи о заправках, пользователей и отозванные токены
package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"fueltracker/pkg/domain"
)

// Стандартные ошибки репозитория
var (
	ErrNotFound          = errors.New("record not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// ListFilter фильтр выборки записей.
// Пустые поля не ограничивают выборку.
type ListFilter struct {
	From     string   // YYYY-MM-DD включительно
	To       string   // YYYY-MM-DD включительно
	Stations []string // точное совпадение
	Limit    int
	Offset   int
}

// RecordRepository хранилище записей о заправках.
// List возвращает записи по возрастанию даты, при равенстве по времени создания.
type RecordRepository interface {
	List(ctx context.Context, userID string, f ListFilter) ([]domain.FuelRecord, error)
	Get(ctx context.Context, userID, id string) (*domain.FuelRecord, error)
	Create(ctx context.Context, rec *domain.FuelRecord) error
	CreateBatch(ctx context.Context, records []domain.FuelRecord) (int, error)
	Update(ctx context.Context, rec *domain.FuelRecord) error
	Delete(ctx context.Context, userID, id string) error
	Stations(ctx context.Context, userID string) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// User модель пользователя
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRepository интерфейс репозитория пользователей
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
}

// TokenBlacklist хранилище отозванных токенов
type TokenBlacklist interface {
	Add(ctx context.Context, token string, expiresAt time.Time) error
	Contains(ctx context.Context, token string) (bool, error)
	Purge(ctx context.Context) (int64, error)
}

// hashToken хранится хэш, а не сам токен
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// prepareNew заполняет ID и отметки времени новой записи
func prepareNew(rec *domain.FuelRecord, id string, now time.Time) {
	if rec.ID == "" {
		rec.ID = id
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt
}

// paginate применяет Offset и Limit к уже отфильтрованной выборке
func paginate(records []domain.FuelRecord, f ListFilter) []domain.FuelRecord {
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []domain.FuelRecord{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && len(records) > f.Limit {
		records = records[:f.Limit]
	}
	return records
}
