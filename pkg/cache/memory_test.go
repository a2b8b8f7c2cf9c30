package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	cache := NewMemoryCache(&Options{
		DefaultTTL: 1 * time.Minute,
		MaxEntries: 100,
	})
	defer cache.Close()

	ctx := context.Background()

	if err := cache.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("failed to set: %v", err)
	}

	got, err := cache.Get(ctx, "key")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if string(got) != "value" {
		t.Errorf("expected value, got %s", got)
	}
}

func TestMemoryCache_GetNotFound(t *testing.T) {
	cache := NewMemoryCache(nil)
	defer cache.Close()

	_, err := cache.Get(context.Background(), "nonexistent")
	if err != ErrKeyNotFound {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestMemoryCache_ReturnsCopy(t *testing.T) {
	cache := NewMemoryCache(nil)
	defer cache.Close()

	ctx := context.Background()
	value := []byte("abc")
	cache.Set(ctx, "key", value, 0)
	value[0] = 'x'

	got, _ := cache.Get(ctx, "key")
	got[1] = 'y'

	again, _ := cache.Get(ctx, "key")
	if string(again) != "abc" {
		t.Errorf("stored value was mutated: %s", again)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache := NewMemoryCache(nil)
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, "short", []byte("v"), 20*time.Millisecond)

	time.Sleep(40 * time.Millisecond)

	if _, err := cache.Get(ctx, "short"); err != ErrKeyNotFound {
		t.Errorf("expected expired key, got %v", err)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache(nil)
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, "key", []byte("value"), 0)

	if err := cache.Delete(ctx, "key"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := cache.Get(ctx, "key"); err != ErrKeyNotFound {
		t.Error("key should be deleted")
	}
	if err := cache.Delete(ctx, "missing"); err != nil {
		t.Errorf("deleting missing key should not fail: %v", err)
	}
}

func TestMemoryCache_DeleteByPrefix(t *testing.T) {
	cache := NewMemoryCache(&Options{KeyPrefix: "app:"})
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, "stats:u1:summary:a", []byte("1"), 0)
	cache.Set(ctx, "stats:u1:series:a", []byte("2"), 0)
	cache.Set(ctx, "stats:u2:summary:a", []byte("3"), 0)

	n, err := cache.DeleteByPrefix(ctx, "stats:u1:")
	if err != nil {
		t.Fatalf("DeleteByPrefix() error = %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d keys, want 2", n)
	}
	if _, err := cache.Get(ctx, "stats:u2:summary:a"); err != nil {
		t.Error("other user's key should survive")
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	cache := NewMemoryCache(&Options{MaxEntries: 2})
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, "a", []byte("1"), 0)
	time.Sleep(time.Millisecond)
	cache.Set(ctx, "b", []byte("2"), 0)
	time.Sleep(time.Millisecond)

	// Обращение к "a" делает "b" самым старым
	cache.Get(ctx, "a")
	time.Sleep(time.Millisecond)
	cache.Set(ctx, "c", []byte("3"), 0)

	if _, err := cache.Get(ctx, "b"); err != ErrKeyNotFound {
		t.Error("least recently used key should be evicted")
	}
	if _, err := cache.Get(ctx, "a"); err != nil {
		t.Error("recently used key should survive")
	}
}

func TestMemoryCache_OverwriteDoesNotEvict(t *testing.T) {
	cache := NewMemoryCache(&Options{MaxEntries: 2})
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, "a", []byte("1"), 0)
	cache.Set(ctx, "b", []byte("2"), 0)
	cache.Set(ctx, "b", []byte("3"), 0)

	if _, err := cache.Get(ctx, "a"); err != nil {
		t.Error("overwriting an existing key should not evict others")
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	cache := NewMemoryCache(nil)
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, "key", []byte("value"), 0)
	cache.Get(ctx, "key")
	cache.Get(ctx, "missing")

	stats, err := cache.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalKeys != 1 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", stats.HitRate)
	}
	if stats.Backend != BackendMemory {
		t.Errorf("Backend = %s", stats.Backend)
	}
}

func TestMemoryCache_Closed(t *testing.T) {
	cache := NewMemoryCache(nil)
	cache.Close()

	ctx := context.Background()
	if _, err := cache.Get(ctx, "key"); err != ErrCacheClosed {
		t.Errorf("Get() error = %v, want ErrCacheClosed", err)
	}
	if err := cache.Set(ctx, "key", nil, 0); err != ErrCacheClosed {
		t.Errorf("Set() error = %v, want ErrCacheClosed", err)
	}
	if err := cache.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache(&Options{MaxEntries: 50})
	defer cache.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range 100 {
				key := fmt.Sprintf("k%d-%d", id, j%20)
				cache.Set(ctx, key, []byte("v"), 0)
				cache.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	stats, _ := cache.Stats(ctx)
	if stats.TotalKeys > 50 {
		t.Errorf("TotalKeys = %d, exceeds MaxEntries", stats.TotalKeys)
	}
}
