package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fueltracker/pkg/domain"
)

// ============================================================
// MOCK DB ADAPTER
// ============================================================

type pgxMockAdapter struct {
	mock pgxmock.PgxPoolIface
}

func (a *pgxMockAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return a.mock.Exec(ctx, sql, args...)
}

func (a *pgxMockAdapter) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return a.mock.Query(ctx, sql, args...)
}

func (a *pgxMockAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return a.mock.QueryRow(ctx, sql, args...)
}

func (a *pgxMockAdapter) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return a.mock.BeginTx(ctx, txOptions)
}

func (a *pgxMockAdapter) Close() {
	a.mock.Close()
}

func (a *pgxMockAdapter) Ping(ctx context.Context) error {
	return a.mock.Ping(ctx)
}

// ============================================================
// HELPER FUNCTIONS
// ============================================================

var recordCols = []string{"id", "user_id", "date", "amount", "cost", "mileage", "station", "created_at", "updated_at"}

func setupMockDB(t *testing.T) (pgxmock.PgxPoolIface, pgRepos) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	adapter := &pgxMockAdapter{mock: mock}
	return mock, pgRepos{
		records:   NewPostgresRecordRepository(adapter),
		users:     NewPostgresUserRepository(adapter),
		blacklist: NewPostgresTokenBlacklist(adapter),
	}
}

type pgRepos struct {
	records   *PostgresRecordRepository
	users     *PostgresUserRepository
	blacklist *PostgresTokenBlacklist
}

// ============================================================
// RECORD TESTS
// ============================================================

func TestPostgresRecordRepository_List_WithFilters(t *testing.T) {
	mock, db := setupMockDB(t)
	defer mock.Close()

	now := time.Now()
	rows := pgxmock.NewRows(recordCols).
		AddRow(uuid.NewString(), "u1", "2024-01-05", 30.0, int64(4800), 1000.0, "ENEOS", now, now).
		AddRow(uuid.NewString(), "u1", "2024-02-05", 32.5, int64(5200), 1400.0, "Shell", now, now)

	mock.ExpectQuery(`FROM fuel_records\s+WHERE user_id = \$1 AND date >= \$2::date AND date <= \$3::date AND station = ANY\(\$4\)`).
		WithArgs("u1", "2024-01-01", "2024-12-31", pgxmock.AnyArg(), 10, 5).
		WillReturnRows(rows)

	got, err := db.records.List(context.Background(), "u1", ListFilter{
		From:     "2024-01-01",
		To:       "2024-12-31",
		Stations: []string{"ENEOS", "Shell"},
		Limit:    10,
		Offset:   5,
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-05", got[0].Date)
	assert.Equal(t, int64(5200), got[1].Cost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordRepository_List_Error(t *testing.T) {
	mock, db := setupMockDB(t)
	defer mock.Close()

	mock.ExpectQuery(`FROM fuel_records`).
		WithArgs("u1").
		WillReturnError(errors.New("connection refused"))

	_, err := db.records.List(context.Background(), "u1", ListFilter{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list records")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordRepository_Get_NotFound(t *testing.T) {
	mock, db := setupMockDB(t)
	defer mock.Close()

	id := uuid.NewString()
	mock.ExpectQuery(`FROM fuel_records WHERE id = \$1 AND user_id = \$2`).
		WithArgs(id, "u1").
		WillReturnError(pgx.ErrNoRows)

	_, err := db.records.Get(context.Background(), "u1", id)
	assert.ErrorIs(t, err, ErrNotFound)

	// Невалидный UUID не доходит до базы
	_, err = db.records.Get(context.Background(), "u1", "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordRepository_Create(t *testing.T) {
	mock, db := setupMockDB(t)
	defer mock.Close()

	rec := domain.FuelRecord{UserID: "u1", Date: "2024-01-05", Amount: 30, Cost: 4800, Mileage: 1000, Station: "ENEOS"}

	mock.ExpectExec(`INSERT INTO fuel_records`).
		WithArgs(pgxmock.AnyArg(), "u1", "2024-01-05", 30.0, int64(4800), 1000.0, "ENEOS", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, db.records.Create(context.Background(), &rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordRepository_CreateBatch_Commit(t *testing.T) {
	mock, db := setupMockDB(t)
	defer mock.Close()

	records := []domain.FuelRecord{
		{UserID: "u1", Date: "2024-01-01", Amount: 30, Cost: 4800, Mileage: 1000},
		{UserID: "u1", Date: "2024-01-10", Amount: 31, Cost: 4900, Mileage: 1400},
	}

	mock.ExpectBegin()
	for range records {
		mock.ExpectExec(`INSERT INTO fuel_records`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	n, err := db.records.CreateBatch(context.Background(), records)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, records[0].CreatedAt.Before(records[1].CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordRepository_CreateBatch_Rollback(t *testing.T) {
	mock, db := setupMockDB(t)
	defer mock.Close()

	records := []domain.FuelRecord{
		{UserID: "u1", Date: "2024-01-01", Amount: 30, Cost: 4800, Mileage: 1000},
		{UserID: "u1", Date: "2024-01-10", Amount: 31, Cost: 4900, Mileage: 1400},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO fuel_records`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO fuel_records`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("check constraint"))
	mock.ExpectRollback()

	n, err := db.records.CreateBatch(context.Background(), records)

	require.Error(t, err)
	assert.Zero(t, n)
	assert.Contains(t, err.Error(), "row 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordRepository_Update(t *testing.T) {
	mock, db := setupMockDB(t)
	defer mock.Close()

	created := time.Now().Add(-time.Hour)
	updated := time.Now()
	rec := domain.FuelRecord{ID: uuid.NewString(), UserID: "u1", Date: "2024-01-05", Amount: 30, Cost: 4800, Mileage: 1000, Station: "Shell"}

	mock.ExpectQuery(`UPDATE fuel_records`).
		WithArgs(rec.ID, "u1", "2024-01-05", 30.0, int64(4800), 1000.0, "Shell").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, updated))

	require.NoError(t, db.records.Update(context.Background(), &rec))
	assert.Equal(t, created, rec.CreatedAt)
	assert.Equal(t, updated, rec.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordRepository_Delete(t *testing.T) {
	mock, db := setupMockDB(t)
	defer mock.Close()

	id := uuid.NewString()
	mock.ExpectExec(`DELETE FROM fuel_records`).
		WithArgs(id, "u1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM fuel_records`).
		WithArgs(id, "u1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, db.records.Delete(context.Background(), "u1", id))
	assert.ErrorIs(t, db.records.Delete(context.Background(), "u1", id), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordRepository_Stations(t *testing.T) {
	mock, db := setupMockDB(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT DISTINCT station`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"station"}).AddRow("ENEOS").AddRow("Shell"))

	got, err := db.records.Stations(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, []string{"ENEOS", "Shell"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================
// USER / BLACKLIST TESTS
// ============================================================

func TestPostgresUserRepository_Create_Duplicate(t *testing.T) {
	mock, db := setupMockDB(t)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "dup@example.com", "hash", "", "user").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := db.users.Create(context.Background(), &User{Email: "Dup@Example.com", PasswordHash: "hash", Role: "user"})

	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepository_GetByEmail(t *testing.T) {
	mock, db := setupMockDB(t)
	defer mock.Close()

	now := time.Now()
	id := uuid.NewString()
	mock.ExpectQuery(`FROM users\s+WHERE email = \$1`).
		WithArgs("a@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "name", "role", "created_at", "updated_at"}).
			AddRow(id, "a@example.com", "hash", "A", "user", now, now))
	mock.ExpectQuery(`FROM users\s+WHERE email = \$1`).
		WithArgs("missing@example.com").
		WillReturnError(pgx.ErrNoRows)

	user, err := db.users.GetByEmail(context.Background(), "A@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)

	_, err = db.users.GetByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTokenBlacklist(t *testing.T) {
	mock, db := setupMockDB(t)
	defer mock.Close()

	expires := time.Now().Add(time.Hour)
	mock.ExpectExec(`INSERT INTO token_blacklist`).
		WithArgs(hashToken("tok"), expires).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(hashToken("tok")).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`DELETE FROM token_blacklist`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	ctx := context.Background()
	require.NoError(t, db.blacklist.Add(ctx, "tok", expires))

	ok, err := db.blacklist.Contains(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := db.blacklist.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
