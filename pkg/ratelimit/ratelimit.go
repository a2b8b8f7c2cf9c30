package ratelimit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"fueltracker/pkg/config"
)

// Стандартные ошибки
var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrLimiterClosed     = errors.New("limiter is closed")
)

// Стратегии
const (
	StrategySlidingWindow = "sliding_window"
	StrategyTokenBucket   = "token_bucket"
)

// Limiter интерфейс ограничителя запросов
type Limiter interface {
	// Allow проверяет, разрешён ли запрос
	Allow(ctx context.Context, key string) (bool, error)

	// AllowN проверяет, разрешены ли n запросов
	AllowN(ctx context.Context, key string, n int) (bool, error)

	// Reset сбрасывает лимит для ключа
	Reset(ctx context.Context, key string) error

	// GetInfo возвращает информацию о текущем состоянии
	GetInfo(ctx context.Context, key string) (*LimitInfo, error)

	// Close закрывает лимитер
	Close() error
}

// LimitInfo информация о состоянии лимита
type LimitInfo struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Config конфигурация rate limiter
type Config struct {
	// Requests количество запросов
	Requests int

	// Window временное окно
	Window time.Duration

	// Strategy стратегия (sliding_window, token_bucket)
	Strategy string

	// Backend хранилище (memory, redis)
	Backend string

	// BurstSize размер burst для token bucket
	BurstSize int

	// CleanupInterval интервал очистки для in-memory
	CleanupInterval time.Duration

	// Redis настройки Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Requests:        100,
		Window:          time.Minute,
		Strategy:        StrategySlidingWindow,
		Backend:         "memory",
		BurstSize:       10,
		CleanupInterval: 5 * time.Minute,
	}
}

// FromConfig создаёт конфигурацию лимитера из конфигурации приложения
func FromConfig(cfg *config.RateLimitConfig) *Config {
	c := DefaultConfig()
	if cfg.Requests > 0 {
		c.Requests = cfg.Requests
	}
	if cfg.Window > 0 {
		c.Window = cfg.Window
	}
	if cfg.Strategy != "" {
		c.Strategy = cfg.Strategy
	}
	if cfg.Backend != "" {
		c.Backend = cfg.Backend
	}
	if cfg.BurstSize > 0 {
		c.BurstSize = cfg.BurstSize
	}
	if cfg.CleanupInterval > 0 {
		c.CleanupInterval = cfg.CleanupInterval
	}
	c.RedisAddr = cfg.RedisAddr
	return c
}

// New создаёт лимитер на основе конфигурации
func New(cfg *Config) (Limiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Backend {
	case "redis":
		return NewRedisLimiter(cfg)
	default:
		return NewMemoryLimiter(cfg), nil
	}
}

// KeyFunc извлекает ключ лимита из HTTP запроса
type KeyFunc func(r *http.Request) string

// IPKey ключ по адресу клиента с учётом прокси
func IPKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// UserKey ключ по пользователю, иначе по IP.
// userFromContext передаётся снаружи, чтобы пакет не зависел от auth.
func UserKey(userFromContext func(context.Context) string) KeyFunc {
	return func(r *http.Request) string {
		if id := userFromContext(r.Context()); id != "" {
			return "user:" + id
		}
		return "ip:" + IPKey(r)
	}
}

// CompositeKey комбинирует несколько ключей
func CompositeKey(fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			parts = append(parts, fn(r))
		}
		return strings.Join(parts, ":")
	}
}

// RouteLimits лимиты по маршрутам (шаблонам ServeMux)
type RouteLimits struct {
	mu       sync.RWMutex
	limiters map[string]Limiter
	fallback Limiter
}

// NewRouteLimits создаёт набор лимитов с лимитером по умолчанию
func NewRouteLimits(fallback Limiter) *RouteLimits {
	return &RouteLimits{
		limiters: make(map[string]Limiter),
		fallback: fallback,
	}
}

// Set устанавливает лимитер для маршрута
func (r *RouteLimits) Set(route string, l Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[route] = l
}

// Get возвращает лимитер маршрута
func (r *RouteLimits) Get(route string) Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if l, ok := r.limiters[route]; ok {
		return l
	}
	return r.fallback
}

// Close закрывает все лимитеры
func (r *RouteLimits) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, l := range r.limiters {
		errs = append(errs, l.Close())
	}
	if r.fallback != nil {
		errs = append(errs, r.fallback.Close())
	}
	return errors.Join(errs...)
}
