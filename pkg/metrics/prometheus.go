package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик
type Metrics struct {
	// HTTP метрики
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Бизнес-метрики
	RecordWritesTotal   *prometheus.CounterVec
	ValidationWarnings  *prometheus.CounterVec
	ImportsTotal        *prometheus.CounterVec
	ImportedRecords     *prometheus.HistogramVec
	ExportsTotal        *prometheus.CounterVec
	ExportBytes         *prometheus.HistogramVec
	StatisticsDuration  *prometheus.HistogramVec
	StatisticsCacheHits *prometheus.CounterVec
	LiveConnections     prometheus.Gauge

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec
}

var (
	defaultMetrics *Metrics
	metricsMu      sync.Mutex
)

// InitMetrics инициализирует метрики. Повторный вызов возвращает уже
// зарегистрированный набор: promauto паникует на дубликатах.
func InitMetrics(namespace, subsystem string) *Metrics {
	metricsMu.Lock()
	defer metricsMu.Unlock()

	if defaultMetrics != nil {
		return defaultMetrics
	}

	m := &Metrics{
		// HTTP метрики
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"route"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Бизнес-метрики
		RecordWritesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "record_writes_total",
				Help:      "Total number of fuel record writes",
			},
			[]string{"operation", "status"},
		),

		ValidationWarnings: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "validation_warnings_total",
				Help:      "Non-blocking validation warnings by code",
			},
			[]string{"code"},
		),

		ImportsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "imports_total",
				Help:      "Total number of import attempts",
			},
			[]string{"format", "status"},
		),

		ImportedRecords: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "imported_records",
				Help:      "Number of records per successful import",
				Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"format"},
		),

		ExportsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "exports_total",
				Help:      "Total number of exports",
			},
			[]string{"format", "status"},
		),

		ExportBytes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "export_bytes",
				Help:      "Size of generated export files",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"format"},
		),

		StatisticsDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "statistics_duration_seconds",
				Help:      "Duration of statistics computation",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"kind"},
		),

		StatisticsCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "statistics_cache_requests_total",
				Help:      "Statistics cache lookups by result",
			},
			[]string{"result"},
		),

		LiveConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "live_connections",
				Help:      "Current number of live statistics subscribers",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	metricsMu.Lock()
	m := defaultMetrics
	metricsMu.Unlock()

	if m == nil {
		return InitMetrics("fueltracker", "")
	}
	return m
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest записывает метрики HTTP запроса
func (m *Metrics) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordWrite записывает операцию над записью (create, update, delete)
func (m *Metrics) RecordWrite(operation string, success bool) {
	m.RecordWritesTotal.WithLabelValues(operation, statusLabel(success)).Inc()
}

// RecordWarnings учитывает нефатальные предупреждения валидации
func (m *Metrics) RecordWarnings(codes ...string) {
	for _, code := range codes {
		m.ValidationWarnings.WithLabelValues(code).Inc()
	}
}

// RecordImport записывает результат импорта
func (m *Metrics) RecordImport(format string, success bool, records int) {
	m.ImportsTotal.WithLabelValues(format, statusLabel(success)).Inc()
	if success {
		m.ImportedRecords.WithLabelValues(format).Observe(float64(records))
	}
}

// RecordExport записывает результат экспорта
func (m *Metrics) RecordExport(format string, success bool, size int) {
	m.ExportsTotal.WithLabelValues(format, statusLabel(success)).Inc()
	if success {
		m.ExportBytes.WithLabelValues(format).Observe(float64(size))
	}
}

// RecordCacheLookup учитывает попадание или промах кэша статистики
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.StatisticsCacheHits.WithLabelValues(result).Inc()
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
