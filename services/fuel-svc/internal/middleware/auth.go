package middleware

import (
	"context"
	"net/http"
	"strings"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/audit"
	"fueltracker/pkg/logger"
	"fueltracker/pkg/passhash"
	edgemetrics "fueltracker/services/fuel-svc/internal/metrics"
)

// Authenticator проверяет access токен
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*passhash.Claims, error)
}

// AuthConfig конфигурация auth middleware
type AuthConfig struct {
	// Authenticator nil означает выключенную аутентификацию:
	// все запросы выполняются от DefaultUserID
	Authenticator Authenticator
	DefaultUserID string
	PublicRoutes  map[string]bool
	// QueryTokenRoutes маршруты, где токен можно передать в ?access_token=
	// (браузерный WebSocket не умеет ставить заголовки)
	QueryTokenRoutes map[string]bool
}

// Auth проверяет Bearer токен и кладёт пользователя в контекст
func Auth(cfg *AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := Route(r)

			if cfg.Authenticator == nil {
				next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), cfg.DefaultUserID, "")))
				return
			}

			// Проверяем, является ли маршрут публичным
			if cfg.PublicRoutes[route] || route == "unmatched" {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r, cfg.QueryTokenRoutes[route])
			claims, err := cfg.Authenticator.Authenticate(r.Context(), token)
			if err != nil {
				edgemetrics.Get().AuthFailed.Inc()
				logger.FromContext(r.Context()).Warn("Token validation failed", "route", route, "error", err)
				if !pkgerrors.Is(err, pkgerrors.CodeUnauthenticated) {
					WriteError(w, r, err)
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="fueltracker"`)
				WriteError(w, r, pkgerrors.New(pkgerrors.CodeUnauthenticated, pkgerrors.From(err).Message))
				return
			}

			edgemetrics.Get().AuthSuccessful.Inc()
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), claims.UserID, claims.Username)))
		})
	}
}

func withIdentity(ctx context.Context, userID, username string) context.Context {
	ctx = WithUser(ctx, userID, username)
	if info, ok := audit.RequestFrom(ctx); ok {
		info.UserID = userID
		info.Username = username
		ctx = audit.WithRequest(ctx, info)
	}
	return logger.IntoContext(ctx, logger.FromContext(ctx).With("user_id", userID))
}

func extractToken(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if allowQuery {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// PublicRoutes возвращает маршруты, доступные без токена
func PublicRoutes() map[string]bool {
	return map[string]bool{
		"POST /api/v1/auth/register": true,
		"POST /api/v1/auth/login":    true,
		"POST /api/v1/auth/refresh":  true,
		"GET /api/v1/import/sample":  true,
		"GET /health":                true,
		"GET /ready":                 true,
		"GET /metrics":               true,
		"GET /swagger/":              true,
	}
}
