package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"fueltracker/pkg/config"
)

// CORS middleware для браузерного клиента
func CORS(cfg config.CORSConfig) Middleware {
	if !cfg.Enabled {
		return nil
	}

	// Предварительно подготавливаем заголовки
	allowedHeaders := prepareAllowedHeaders(cfg.AllowedHeaders)
	allowedMethods := strings.Join(cfg.AllowedMethods, ", ")
	exposedHeaders := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)
	wildcard := slices.Contains(cfg.AllowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowedOrigin := ""
			switch {
			case wildcard && cfg.AllowCredentials && origin != "":
				// "*" вместе с credentials браузер отвергает
				allowedOrigin = origin
			case wildcard:
				allowedOrigin = "*"
			case origin != "" && slices.Contains(cfg.AllowedOrigins, origin):
				allowedOrigin = origin
			}

			h := w.Header()
			if allowedOrigin != "" {
				h.Set("Access-Control-Allow-Origin", allowedOrigin)
				if allowedOrigin != "*" {
					h.Add("Vary", "Origin")
				}
			}
			h.Set("Access-Control-Allow-Methods", allowedMethods)
			h.Set("Access-Control-Allow-Headers", allowedHeaders)
			if exposedHeaders != "" {
				h.Set("Access-Control-Expose-Headers", exposedHeaders)
			}
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			// Preflight
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// prepareAllowedHeaders раскрывает wildcard и добавляет обязательные заголовки
func prepareAllowedHeaders(headers []string) string {
	// браузеры не включают Authorization при "*"
	if slices.Contains(headers, "*") {
		return strings.Join([]string{
			"Accept",
			"Accept-Language",
			"Content-Language",
			"Content-Type",
			"Authorization",
			"Origin",
			"X-Requested-With",
			RequestIDHeader,
		}, ", ")
	}

	hasAuth := slices.ContainsFunc(headers, func(h string) bool {
		return strings.EqualFold(h, "Authorization")
	})
	if !hasAuth {
		headers = append(slices.Clone(headers), "Authorization")
	}
	return strings.Join(headers, ", ")
}
