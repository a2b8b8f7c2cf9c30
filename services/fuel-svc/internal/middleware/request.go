package middleware

import (
	"net/http"

	"fueltracker/pkg/audit"
	"fueltracker/pkg/logger"
	"fueltracker/pkg/ratelimit"
)

// RequestIDHeader заголовок с ID запроса
const RequestIDHeader = "X-Request-ID"

// RequestContext назначает ID запроса, определяет маршрут ServeMux и
// кладёт в контекст логгер и атрибуты для аудита.
// Маршрут записывается в r.Pattern, чтобы его видели внешние middleware.
func RequestContext(mux *http.ServeMux) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 128 {
				id = GenerateRequestID()
			}
			w.Header().Set(RequestIDHeader, id)

			r2 := r.WithContext(r.Context())
			if mux != nil {
				_, r2.Pattern = mux.Handler(r)
			}

			ctx := WithRequestID(r2.Context(), id)
			ctx = logger.IntoContext(ctx, logger.Log.With("request_id", id))
			ctx = audit.WithRequest(ctx, audit.RequestInfo{
				RequestID: id,
				Route:     r2.Pattern,
				ClientIP:  ratelimit.IPKey(r),
				UserAgent: r.UserAgent(),
			})

			next.ServeHTTP(w, r2.WithContext(ctx))
		})
	}
}

// Route возвращает шаблон маршрута или метку для несопоставленных запросов
func Route(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}
