package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// SnapshotCache типизированный кэш снимков статистики пользователя.
// Ключ включает отпечаток набора записей, поэтому устаревший снимок
// никогда не совпадёт с новым набором даже без явной инвалидации.
type SnapshotCache[T any] struct {
	cache Cache
	kind  string
	ttl   time.Duration
}

// NewSnapshotCache создаёт кэш снимков вида kind
func NewSnapshotCache[T any](c Cache, kind string, ttl time.Duration) *SnapshotCache[T] {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SnapshotCache[T]{cache: c, kind: kind, ttl: ttl}
}

// Get получает снимок
func (sc *SnapshotCache[T]) Get(ctx context.Context, userID, fingerprint string) (*T, bool, error) {
	key := BuildSnapshotKey(userID, sc.kind, fingerprint)

	data, err := sc.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		// Повреждённая запись, удаляем и считаем промахом
		_ = sc.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup
		return nil, false, nil
	}

	return &value, true, nil
}

// Set сохраняет снимок
func (sc *SnapshotCache[T]) Set(ctx context.Context, userID, fingerprint string, value *T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return sc.cache.Set(ctx, BuildSnapshotKey(userID, sc.kind, fingerprint), data, sc.ttl)
}

// GetOrCompute возвращает снимок из кэша или вычисляет и сохраняет его.
// Ошибки кэша не прерывают вычисление. Второй результат true при попадании.
func (sc *SnapshotCache[T]) GetOrCompute(ctx context.Context, userID, fingerprint string, compute func() T) (T, bool) {
	if cached, ok, err := sc.Get(ctx, userID, fingerprint); err == nil && ok {
		return *cached, true
	}

	value := compute()
	_ = sc.Set(ctx, userID, fingerprint, &value) //nolint:errcheck // кэш необязателен
	return value, false
}

// Invalidate удаляет все снимки пользователя всех видов
func (sc *SnapshotCache[T]) Invalidate(ctx context.Context, userID string) (int64, error) {
	return sc.cache.DeleteByPrefix(ctx, UserPrefix(userID))
}
