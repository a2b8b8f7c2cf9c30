package middleware

import (
	"net/http"
	"time"

	"fueltracker/pkg/metrics"
	edgemetrics "fueltracker/services/fuel-svc/internal/metrics"
)

// Metrics записывает метрики запросов и число запросов в работе
func Metrics(tracker *metrics.RequestTracker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := Route(r)
			if tracker != nil {
				tracker.Start(route)
				defer tracker.End(route)
			}

			start := time.Now()
			rw := wrapWriter(w)
			next.ServeHTTP(rw, r)

			metrics.Get().RecordHTTPRequest(route, r.Method, rw.status, time.Since(start))
			edgemetrics.Get().RecordResponseSize(route, rw.size)
		})
	}
}
