package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fueltracker/pkg/domain"
	"fueltracker/pkg/telemetry"
)

const sqliteRecordColumns = `id, user_id, date, amount, cost, mileage, station, created_at, updated_at`

// SQLiteRecordRepository реализация RecordRepository поверх локального файла SQLite
type SQLiteRecordRepository struct {
	db *sql.DB
}

// NewSQLiteRecordRepository создаёт новый SQLite репозиторий
func NewSQLiteRecordRepository(db *sql.DB) *SQLiteRecordRepository {
	return &SQLiteRecordRepository{db: db}
}

func (r *SQLiteRecordRepository) List(ctx context.Context, userID string, f ListFilter) ([]domain.FuelRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteRecordRepository.List",
		telemetry.WithAttributes(telemetry.DBAttributes("sqlite", "select")...))
	defer span.End()

	clauses := []string{"user_id = ?"}
	args := []any{userID}
	if f.From != "" {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.To)
	}
	if len(f.Stations) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Stations)), ",")
		clauses = append(clauses, "station IN ("+placeholders+")")
		for _, s := range f.Stations {
			args = append(args, s)
		}
	}

	query := fmt.Sprintf(`SELECT %s FROM fuel_records WHERE %s ORDER BY date ASC, created_at ASC, id ASC`,
		sqliteRecordColumns, strings.Join(clauses, " AND "))

	// В SQLite OFFSET допустим только вместе с LIMIT
	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]domain.FuelRecord, 0)
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return records, nil
}

func (r *SQLiteRecordRepository) Get(ctx context.Context, userID, id string) (*domain.FuelRecord, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM fuel_records WHERE id = ? AND user_id = ?`, sqliteRecordColumns), id, userID)

	rec, err := scanSQLiteRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &rec, nil
}

func (r *SQLiteRecordRepository) Create(ctx context.Context, rec *domain.FuelRecord) error {
	prepareNew(rec, uuid.NewString(), time.Now().UTC())
	if err := insertSQLiteRecord(ctx, r.db, rec); err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

// CreateBatch вставляет записи в одной транзакции
func (r *SQLiteRecordRepository) CreateBatch(ctx context.Context, records []domain.FuelRecord) (n int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteRecordRepository.CreateBatch",
		telemetry.WithAttributes(telemetry.DBAttributes("sqlite", "insert")...))
	defer span.End()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range records {
		prepareNew(&records[i], uuid.NewString(), now.Add(time.Duration(i)*time.Microsecond))
		if err = insertSQLiteRecord(ctx, tx, &records[i]); err != nil {
			return 0, fmt.Errorf("failed to import records: row %d: %w", i+1, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(records), nil
}

func (r *SQLiteRecordRepository) Update(ctx context.Context, rec *domain.FuelRecord) error {
	existing, err := r.Get(ctx, rec.UserID, rec.ID)
	if err != nil {
		return err
	}

	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`UPDATE fuel_records SET date = ?, amount = ?, cost = ?, mileage = ?, station = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		rec.Date, rec.Amount, rec.Cost, rec.Mileage, rec.Station,
		formatTimestamp(rec.UpdatedAt), rec.ID, rec.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	return nil
}

func (r *SQLiteRecordRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM fuel_records WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRecordRepository) Stations(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT station FROM fuel_records WHERE user_id = ? AND station <> '' ORDER BY station`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stations := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}

func (r *SQLiteRecordRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fuel_records`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return total, nil
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSQLiteRecord(ctx context.Context, db sqlExecer, rec *domain.FuelRecord) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO fuel_records (id, user_id, date, amount, cost, mileage, station, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.UserID,
		rec.Date,
		rec.Amount,
		rec.Cost,
		rec.Mileage,
		rec.Station,
		formatTimestamp(rec.CreatedAt),
		formatTimestamp(rec.UpdatedAt),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (domain.FuelRecord, error) {
	var (
		rec                  domain.FuelRecord
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Date,
		&rec.Amount,
		&rec.Cost,
		&rec.Mileage,
		&rec.Station,
		&createdAt,
		&updatedAt,
	); err != nil {
		return rec, err
	}
	rec.CreatedAt = parseTimestamp(createdAt)
	rec.UpdatedAt = parseTimestamp(updatedAt)
	return rec, nil
}

// Фиксированная ширина, чтобы строки сравнивались как время
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SQLiteUserRepository реализация UserRepository поверх SQLite
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository создаёт новый SQLite репозиторий
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, strings.ToLower(user.Email), user.PasswordHash, user.Name, user.Role,
		formatTimestamp(now), formatTimestamp(now),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email", strings.ToLower(email))
}

func (r *SQLiteUserRepository) getOne(ctx context.Context, column, value string) (*User, error) {
	var (
		user                 User
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, email, password_hash, name, role, created_at, updated_at FROM users WHERE %s = ?`, column),
		value,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	user.CreatedAt = parseTimestamp(createdAt)
	user.UpdatedAt = parseTimestamp(updatedAt)
	return &user, nil
}

func (r *SQLiteUserRepository) Update(ctx context.Context, user *User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, password_hash = ?, name = ?, role = ?, updated_at = ? WHERE id = ?`,
		strings.ToLower(user.Email), user.PasswordHash, user.Name, user.Role,
		formatTimestamp(user.UpdatedAt), user.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SQLiteTokenBlacklist реализация TokenBlacklist поверх SQLite
type SQLiteTokenBlacklist struct {
	db *sql.DB
}

// NewSQLiteTokenBlacklist создаёт новый blacklist
func NewSQLiteTokenBlacklist(db *sql.DB) *SQLiteTokenBlacklist {
	return &SQLiteTokenBlacklist{db: db}
}

func (bl *SQLiteTokenBlacklist) Add(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := bl.db.ExecContext(ctx,
		`INSERT INTO token_blacklist (token_hash, expires_at) VALUES (?, ?)
		 ON CONFLICT (token_hash) DO UPDATE SET expires_at = excluded.expires_at`,
		hashToken(token), formatTimestamp(expiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to add token to blacklist: %w", err)
	}
	return nil
}

func (bl *SQLiteTokenBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	var expiresAt string
	err := bl.db.QueryRowContext(ctx,
		`SELECT expires_at FROM token_blacklist WHERE token_hash = ?`, hashToken(token)).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check token in blacklist: %w", err)
	}
	return time.Now().Before(parseTimestamp(expiresAt)), nil
}

// Purge удаляет устаревшие токены
func (bl *SQLiteTokenBlacklist) Purge(ctx context.Context) (int64, error) {
	res, err := bl.db.ExecContext(ctx,
		`DELETE FROM token_blacklist WHERE expires_at <= ?`, formatTimestamp(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to purge blacklist: %w", err)
	}
	return res.RowsAffected()
}
