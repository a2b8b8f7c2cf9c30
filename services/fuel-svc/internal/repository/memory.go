package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fueltracker/pkg/domain"
)

// MemoryRecordRepository in-memory реализация RecordRepository
type MemoryRecordRepository struct {
	mu      sync.RWMutex
	records map[string]domain.FuelRecord // id -> record
	now     func() time.Time
}

// NewMemoryRecordRepository создаёт новый in-memory репозиторий
func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{
		records: make(map[string]domain.FuelRecord),
		now:     time.Now,
	}
}

func (r *MemoryRecordRepository) List(ctx context.Context, userID string, f ListFilter) ([]domain.FuelRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.FuelRecord, 0)
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		if f.From != "" && rec.Date < f.From {
			continue
		}
		if f.To != "" && rec.Date > f.To {
			continue
		}
		if len(f.Stations) > 0 && !slices.Contains(f.Stations, rec.Station) {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	return paginate(out, f), nil
}

func (r *MemoryRecordRepository) Get(ctx context.Context, userID, id string) (*domain.FuelRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok || rec.UserID != userID {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *MemoryRecordRepository) Create(ctx context.Context, rec *domain.FuelRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prepareNew(rec, uuid.NewString(), r.now())
	r.records[rec.ID] = *rec
	return nil
}

// CreateBatch сохраняет все записи или ни одной
func (r *MemoryRecordRepository) CreateBatch(ctx context.Context, records []domain.FuelRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	staged := make([]domain.FuelRecord, len(records))
	for i := range records {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		rec := records[i]
		// Различаем время создания, чтобы сохранить порядок внутри одной даты
		prepareNew(&rec, uuid.NewString(), now.Add(time.Duration(i)*time.Microsecond))
		staged[i] = rec
	}

	for i, rec := range staged {
		r.records[rec.ID] = rec
		records[i] = rec
	}
	return len(staged), nil
}

func (r *MemoryRecordRepository) Update(ctx context.Context, rec *domain.FuelRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.records[rec.ID]
	if !ok || existing.UserID != rec.UserID {
		return ErrNotFound
	}

	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = r.now()
	r.records[rec.ID] = *rec
	return nil
}

func (r *MemoryRecordRepository) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.UserID != userID {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *MemoryRecordRepository) Stations(ctx context.Context, userID string) ([]string, error) {
	records, err := r.List(ctx, userID, ListFilter{})
	if err != nil {
		return nil, err
	}
	return domain.Stations(records), nil
}

func (r *MemoryRecordRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.records)), nil
}

// MemoryUserRepository in-memory реализация UserRepository
type MemoryUserRepository struct {
	mu      sync.RWMutex
	users   map[string]*User  // id -> user
	byEmail map[string]string // email (lower) -> id
}

// NewMemoryUserRepository создаёт новый in-memory репозиторий
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := r.byEmail[email]; exists {
		return ErrUserAlreadyExists
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.users[user.ID] = &stored
	r.byEmail[email] = user.ID

	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}

	result := *user
	return &result, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byEmail[strings.ToLower(email)]
	if !exists {
		return nil, ErrUserNotFound
	}

	result := *r.users[id]
	return &result, nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.users[user.ID]
	if !exists {
		return ErrUserNotFound
	}

	oldEmail := strings.ToLower(existing.Email)
	newEmail := strings.ToLower(user.Email)
	if oldEmail != newEmail {
		if _, taken := r.byEmail[newEmail]; taken {
			return ErrUserAlreadyExists
		}
		delete(r.byEmail, oldEmail)
		r.byEmail[newEmail] = user.ID
	}

	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()

	stored := *user
	r.users[user.ID] = &stored
	return nil
}

// MemoryTokenBlacklist in-memory реализация TokenBlacklist
type MemoryTokenBlacklist struct {
	mu     sync.RWMutex
	tokens map[string]time.Time // hash -> expiry
}

// NewMemoryTokenBlacklist создаёт новый blacklist
func NewMemoryTokenBlacklist() *MemoryTokenBlacklist {
	return &MemoryTokenBlacklist{
		tokens: make(map[string]time.Time),
	}
}

func (bl *MemoryTokenBlacklist) Add(ctx context.Context, token string, expiresAt time.Time) error {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	bl.tokens[hashToken(token)] = expiresAt
	return nil
}

func (bl *MemoryTokenBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	bl.mu.RLock()
	defer bl.mu.RUnlock()

	expiry, exists := bl.tokens[hashToken(token)]
	if !exists {
		return false, nil
	}
	return time.Now().Before(expiry), nil
}

// Purge удаляет истёкшие записи
func (bl *MemoryTokenBlacklist) Purge(ctx context.Context) (int64, error) {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	now := time.Now()
	var removed int64
	for hash, expiry := range bl.tokens {
		if !now.Before(expiry) {
			delete(bl.tokens, hash)
			removed++
		}
	}
	return removed, nil
}
