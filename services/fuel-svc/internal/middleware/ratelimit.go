package middleware

import (
	"net/http"
	"strconv"
	"time"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/logger"
	"fueltracker/pkg/ratelimit"
	edgemetrics "fueltracker/services/fuel-svc/internal/metrics"
)

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Limits        *ratelimit.RouteLimits
	KeyFunc       ratelimit.KeyFunc
	ExcludeRoutes map[string]bool
}

// RateLimit ограничивает запросы по маршруту и ключу клиента.
// Ошибка хранилища лимитов запрос не блокирует.
func RateLimit(cfg *RateLimitConfig) Middleware {
	if cfg == nil || cfg.Limits == nil {
		return nil
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ratelimit.UserKey(GetUserID)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := Route(r)
			if cfg.ExcludeRoutes[route] {
				next.ServeHTTP(w, r)
				return
			}

			limiter := cfg.Limits.Get(route)
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := route + ":" + cfg.KeyFunc(r)

			allowed, err := limiter.Allow(ctx, key)
			if err != nil {
				logger.FromContext(ctx).Warn("Rate limit check failed", "error", err, "key", key)
				// fail open
				next.ServeHTTP(w, r)
				return
			}

			info, infoErr := limiter.GetInfo(ctx, key)
			if infoErr != nil {
				logger.FromContext(ctx).Warn("Failed to get rate limit info", "error", infoErr, "key", key)
				info = &ratelimit.LimitInfo{ResetAt: time.Now().Add(time.Minute)}
			}
			setLimitHeaders(w.Header(), info)

			if !allowed {
				edgemetrics.Get().RateLimitHits.Inc()
				retry := max(time.Until(info.ResetAt), info.RetryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))

				logger.FromContext(ctx).Warn("Rate limit exceeded", "key", key, "limit", info.Limit)
				WriteError(w, r, pkgerrors.New(pkgerrors.CodeRateLimited, "rate limit exceeded").
					WithDetails("retry_after_seconds", int(retry.Seconds())+1))
				return
			}

			edgemetrics.Get().RateLimitPassed.Inc()
			next.ServeHTTP(w, r)
		})
	}
}

func setLimitHeaders(h http.Header, info *ratelimit.LimitInfo) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(info.Remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
}
