package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"fueltracker/pkg/database"
	"fueltracker/pkg/domain"
	"fueltracker/pkg/logger"
	"fueltracker/pkg/telemetry"
)

const recordColumns = `id, user_id, to_char(date, 'YYYY-MM-DD'), amount, cost, mileage, station, created_at, updated_at`

// PostgresRecordRepository PostgreSQL реализация RecordRepository
type PostgresRecordRepository struct {
	db database.DB
}

// NewPostgresRecordRepository создаёт новый PostgreSQL репозиторий
func NewPostgresRecordRepository(db database.DB) *PostgresRecordRepository {
	return &PostgresRecordRepository{db: db}
}

func (r *PostgresRecordRepository) List(ctx context.Context, userID string, f ListFilter) ([]domain.FuelRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRecordRepository.List",
		telemetry.WithAttributes(telemetry.DBAttributes("postgresql", "select")...))
	defer span.End()

	conditions := []string{"user_id = $1"}
	args := []any{userID}
	argIdx := 2

	if f.From != "" {
		conditions = append(conditions, fmt.Sprintf("date >= $%d::date", argIdx))
		args = append(args, f.From)
		argIdx++
	}

	if f.To != "" {
		conditions = append(conditions, fmt.Sprintf("date <= $%d::date", argIdx))
		args = append(args, f.To)
		argIdx++
	}

	if len(f.Stations) > 0 {
		conditions = append(conditions, fmt.Sprintf("station = ANY($%d)", argIdx))
		args = append(args, pq.Array(f.Stations))
		argIdx++
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM fuel_records
		WHERE %s
		ORDER BY date ASC, created_at ASC, id ASC
	`, recordColumns, strings.Join(conditions, " AND "))

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
		argIdx++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, f.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.FuelRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
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

func (r *PostgresRecordRepository) Get(ctx context.Context, userID, id string) (*domain.FuelRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRecordRepository.Get")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM fuel_records WHERE id = $1 AND user_id = $2`, recordColumns)

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return &rec, nil
}

func (r *PostgresRecordRepository) Create(ctx context.Context, rec *domain.FuelRecord) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRecordRepository.Create")
	defer span.End()

	prepareNew(rec, uuid.NewString(), time.Now().UTC())
	if err := insertRecord(ctx, r.db, rec); err != nil {
		telemetry.SetError(ctx, err)
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

// CreateBatch вставляет записи в одной транзакции
func (r *PostgresRecordRepository) CreateBatch(ctx context.Context, records []domain.FuelRecord) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRecordRepository.CreateBatch",
		telemetry.WithAttributes(telemetry.DBAttributes("postgresql", "insert")...))
	defer span.End()

	now := time.Now().UTC()
	inserted, err := database.WithTransactionResult(ctx, r.db, func(tx pgx.Tx) (int, error) {
		for i := range records {
			prepareNew(&records[i], uuid.NewString(), now.Add(time.Duration(i)*time.Microsecond))
			if err := insertRecord(ctx, tx, &records[i]); err != nil {
				return i, fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		return len(records), nil
	})
	if err != nil {
		telemetry.SetError(ctx, err)
		return 0, fmt.Errorf("failed to import records: %w", err)
	}

	logger.Log.Debug("Records batch inserted", "count", inserted)
	return inserted, nil
}

func (r *PostgresRecordRepository) Update(ctx context.Context, rec *domain.FuelRecord) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRecordRepository.Update")
	defer span.End()

	if _, err := uuid.Parse(rec.ID); err != nil {
		return ErrNotFound
	}

	query := `
		UPDATE fuel_records
		SET date = $3::date, amount = $4, cost = $5, mileage = $6, station = $7, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Date,
		rec.Amount,
		rec.Cost,
		rec.Mileage,
		rec.Station,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update record: %w", err)
	}

	return nil
}

func (r *PostgresRecordRepository) Delete(ctx context.Context, userID, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRecordRepository.Delete")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	result, err := r.db.Exec(ctx, `DELETE FROM fuel_records WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresRecordRepository) Stations(ctx context.Context, userID string) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRecordRepository.Stations")
	defer span.End()

	query := `
		SELECT DISTINCT station
		FROM fuel_records
		WHERE user_id = $1 AND station <> ''
		ORDER BY station COLLATE "C"
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	defer rows.Close()

	stations := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, s)
	}

	return stations, rows.Err()
}

func (r *PostgresRecordRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM fuel_records`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return total, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertRecord(ctx context.Context, db execer, rec *domain.FuelRecord) error {
	query := `
		INSERT INTO fuel_records (id, user_id, date, amount, cost, mileage, station, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9)
	`
	_, err := db.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Date,
		rec.Amount,
		rec.Cost,
		rec.Mileage,
		rec.Station,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

func scanRecord(row pgx.Row) (domain.FuelRecord, error) {
	var rec domain.FuelRecord
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Date,
		&rec.Amount,
		&rec.Cost,
		&rec.Mileage,
		&rec.Station,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}

// PostgresUserRepository PostgreSQL реализация UserRepository
type PostgresUserRepository struct {
	db database.DB
}

// NewPostgresUserRepository создаёт новый PostgreSQL репозиторий
func NewPostgresUserRepository(db database.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *User) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresUserRepository.Create")
	defer span.End()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		user.ID,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.Name,
		user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresUserRepository.GetByID")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}

	return r.getOne(ctx, "id", id)
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresUserRepository.GetByEmail")
	defer span.End()

	return r.getOne(ctx, "email", strings.ToLower(email))
}

func (r *PostgresUserRepository) getOne(ctx context.Context, column, value string) (*User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, password_hash, name, role, created_at, updated_at
		FROM users
		WHERE %s = $1
	`, column)

	user := &User{}
	err := r.db.QueryRow(ctx, query, value).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}

	return user, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, user *User) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresUserRepository.Update")
	defer span.End()

	query := `
		UPDATE users
		SET email = $2, password_hash = $3, name = $4, role = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		user.ID,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.Name,
		user.Role,
	).Scan(&user.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// PostgresTokenBlacklist PostgreSQL реализация TokenBlacklist
type PostgresTokenBlacklist struct {
	db database.DB
}

// NewPostgresTokenBlacklist создаёт новый PostgreSQL blacklist
func NewPostgresTokenBlacklist(db database.DB) *PostgresTokenBlacklist {
	return &PostgresTokenBlacklist{db: db}
}

func (bl *PostgresTokenBlacklist) Add(ctx context.Context, token string, expiresAt time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresTokenBlacklist.Add")
	defer span.End()

	query := `
		INSERT INTO token_blacklist (token_hash, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token_hash) DO UPDATE SET expires_at = $2
	`

	if _, err := bl.db.Exec(ctx, query, hashToken(token), expiresAt); err != nil {
		return fmt.Errorf("failed to add token to blacklist: %w", err)
	}

	return nil
}

func (bl *PostgresTokenBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresTokenBlacklist.Contains")
	defer span.End()

	query := `
		SELECT EXISTS(
			SELECT 1 FROM token_blacklist
			WHERE token_hash = $1 AND expires_at > NOW()
		)
	`

	var exists bool
	if err := bl.db.QueryRow(ctx, query, hashToken(token)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check token in blacklist: %w", err)
	}

	return exists, nil
}

// Purge удаляет устаревшие токены
func (bl *PostgresTokenBlacklist) Purge(ctx context.Context) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresTokenBlacklist.Purge")
	defer span.End()

	result, err := bl.db.Exec(ctx, `DELETE FROM token_blacklist WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge blacklist: %w", err)
	}

	return result.RowsAffected(), nil
}
