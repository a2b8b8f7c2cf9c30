package middleware

import "net/http"

// Middleware обёртка над http.Handler
type Middleware func(http.Handler) http.Handler

// Chain применяет middleware так, что первый в списке оказывается внешним
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}
