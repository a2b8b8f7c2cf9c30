package middleware

import (
	"net/http"
	"time"

	"fueltracker/pkg/logger"
)

// Logging логирует запросы с дополнительной информацией
func Logging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrapWriter(w)

			ctx, st := withState(r.Context())
			next.ServeHTTP(rw, r.WithContext(ctx))

			logFields := []any{
				"method", r.Method,
				"route", Route(r),
				"path", r.URL.Path,
				"status", rw.status,
				"bytes", rw.size,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if st.userID != "" {
				logFields = append(logFields, "user_id", st.userID)
			}

			l := logger.FromContext(r.Context())
			switch {
			case rw.status >= http.StatusInternalServerError:
				l.Error("HTTP request failed", logFields...)
			case r.URL.Path == "/health" || r.URL.Path == "/ready" || r.URL.Path == "/metrics":
				l.Debug("HTTP request completed", logFields...)
			default:
				l.Info("HTTP request completed", logFields...)
			}
		})
	}
}
