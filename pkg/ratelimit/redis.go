package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript атомарно чистит окно, считает и добавляет запросы
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local count = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

	local current = redis.call('ZCARD', key)

	if current + count <= limit then
		for i = 1, count do
			redis.call('ZADD', key, now, now .. ':' .. i .. ':' .. math.random())
		end
		redis.call('PEXPIRE', key, window + 1000)
		return {1, limit - current - count}
	end

	return {0, 0}
`)

// RedisLimiter Redis-based rate limiter (sliding window на sorted set)
type RedisLimiter struct {
	client *redis.Client
	config *Config
}

// NewRedisLimiter создаёт Redis rate limiter
func NewRedisLimiter(cfg *Config) (*RedisLimiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisLimiter{
		client: client,
		config: cfg,
	}, nil
}

func redisKey(key string) string {
	return "fueltracker:ratelimit:" + key
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

func (l *RedisLimiter) AllowN(ctx context.Context, key string, n int) (bool, error) {
	result, err := slidingWindowScript.Run(ctx, l.client, []string{redisKey(key)},
		l.config.Requests, l.config.Window.Milliseconds(), time.Now().UnixMilli(), n).Slice()
	if err != nil {
		return false, fmt.Errorf("redis script error: %w", err)
	}

	if len(result) == 0 {
		return false, fmt.Errorf("unexpected empty result from redis script")
	}

	allowed, ok := result[0].(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result type from redis script")
	}

	return allowed == 1, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, redisKey(key)).Err()
}

func (l *RedisLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	now := time.Now()
	windowStart := now.Add(-l.config.Window).UnixMilli()

	count, err := l.client.ZCount(ctx, redisKey(key), strconv.FormatInt(windowStart, 10), "+inf").Result()
	if err != nil {
		return nil, err
	}

	info := &LimitInfo{
		Limit:     l.config.Requests,
		Remaining: max(l.config.Requests-int(count), 0),
		ResetAt:   now.Add(l.config.Window),
	}
	if info.Remaining == 0 {
		info.RetryAfter = l.config.Window
	}
	return info, nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
