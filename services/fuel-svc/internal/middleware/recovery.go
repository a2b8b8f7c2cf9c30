package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/logger"
	edgemetrics "fueltracker/services/fuel-svc/internal/metrics"
)

// Recovery перехватывает панику обработчика и отвечает 500
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := wrapWriter(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				edgemetrics.Get().Panics.Inc()
				logger.FromContext(r.Context()).Error("Panic recovered",
					"panic", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				if !rw.wroteHeader {
					WriteError(rw, r, pkgerrors.New(pkgerrors.CodeInternal, "internal server error"))
				}
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
