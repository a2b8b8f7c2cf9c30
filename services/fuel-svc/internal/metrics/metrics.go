// services/fuel-svc/internal/metrics/metrics.go

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *EdgeMetrics
)

// EdgeMetrics метрики HTTP-края fuel-svc: лимиты, аутентификация, ошибки API
type EdgeMetrics struct {
	// Ошибки по кодам apperror
	ErrorsByCode *prometheus.CounterVec

	// Размер ответов
	ResponseSize *prometheus.HistogramVec

	// Rate limiting
	RateLimitHits   prometheus.Counter
	RateLimitPassed prometheus.Counter

	// Auth
	AuthSuccessful prometheus.Counter
	AuthFailed     prometheus.Counter

	// Паники, пойманные recovery
	Panics prometheus.Counter

	// Сообщения live-ленты
	LiveMessages *prometheus.CounterVec
}

// Init инициализирует метрики
func Init() *EdgeMetrics {
	once.Do(func() {
		instance = &EdgeMetrics{
			ErrorsByCode: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "fuel_api",
					Name:      "errors_total",
					Help:      "API errors by application error code",
				},
				[]string{"code", "status"},
			),

			ResponseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "fuel_api",
					Name:      "response_size_bytes",
					Help:      "Response size in bytes",
					Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
				},
				[]string{"route"},
			),

			RateLimitHits: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "fuel_api",
					Name:      "rate_limit_hits_total",
					Help:      "Total rate limit hits",
				},
			),

			RateLimitPassed: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "fuel_api",
					Name:      "rate_limit_passed_total",
					Help:      "Total requests passed rate limit",
				},
			),

			AuthSuccessful: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "fuel_api",
					Name:      "auth_successful_total",
					Help:      "Total successful authentications",
				},
			),

			AuthFailed: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "fuel_api",
					Name:      "auth_failed_total",
					Help:      "Total failed authentications",
				},
			),

			Panics: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "fuel_api",
					Name:      "panics_recovered_total",
					Help:      "Total panics recovered by the HTTP middleware",
				},
			),

			LiveMessages: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "fuel_api",
					Name:      "live_messages_total",
					Help:      "Live feed messages by outcome",
				},
				[]string{"outcome"}, // sent, dropped
			),
		}
	})
	return instance
}

// Get возвращает инстанс метрик
func Get() *EdgeMetrics {
	if instance == nil {
		return Init()
	}
	return instance
}

// RecordError записывает ошибку API
func (m *EdgeMetrics) RecordError(code string, status int) {
	m.ErrorsByCode.WithLabelValues(code, statusClass(status)).Inc()
}

// RecordResponseSize записывает размер ответа
func (m *EdgeMetrics) RecordResponseSize(route string, size int) {
	m.ResponseSize.WithLabelValues(route).Observe(float64(size))
}

// RecordLiveMessage записывает отправленное или отброшенное сообщение
func (m *EdgeMetrics) RecordLiveMessage(sent bool) {
	if sent {
		m.LiveMessages.WithLabelValues("sent").Inc()
		return
	}
	m.LiveMessages.WithLabelValues("dropped").Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "other"
	}
}
