package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CountFunc возвращает текущее число записей в хранилище
type CountFunc func(ctx context.Context) (int64, error)

// StoreCollector снимает размер хранилища при каждом scrape
type StoreCollector struct {
	records *prometheus.Desc
	up      *prometheus.Desc
	count   CountFunc
	timeout time.Duration
}

// NewStoreCollector создаёт коллектор размера хранилища
func NewStoreCollector(namespace, subsystem, driver string, count CountFunc) *StoreCollector {
	labels := prometheus.Labels{"driver": driver}
	return &StoreCollector{
		records: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "store_records"),
			"Number of fuel records in the store",
			nil, labels,
		),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "store_up"),
			"Whether the last store count succeeded",
			nil, labels,
		),
		count:   count,
		timeout: 2 * time.Second,
	}
}

// Describe implements prometheus.Collector
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.records
	ch <- c.up
}

// Collect implements prometheus.Collector
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	n, err := c.count(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.records, prometheus.GaugeValue, float64(n))
}

// RequestTracker отслеживает активные запросы по маршрутам
type RequestTracker struct {
	mu       sync.Mutex
	active   map[string]int
	inFlight prometheus.Gauge
}

// NewRequestTracker создаёт новый трекер запросов
func NewRequestTracker(inFlight prometheus.Gauge) *RequestTracker {
	return &RequestTracker{
		active:   make(map[string]int),
		inFlight: inFlight,
	}
}

// Start отмечает начало запроса
func (t *RequestTracker) Start(route string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active[route]++
	t.inFlight.Inc()
}

// End отмечает завершение запроса
func (t *RequestTracker) End(route string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active[route] > 0 {
		t.active[route]--
		t.inFlight.Dec()
	}
}

// Active число активных запросов маршрута
func (t *RequestTracker) Active(route string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[route]
}

// Timer для измерения времени выполнения
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer создаёт новый таймер
func NewTimer(histogram *prometheus.HistogramVec, labels ...string) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram.WithLabelValues(labels...),
	}
}

// ObserveDuration записывает длительность
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	t.observer.Observe(duration.Seconds())
	return duration
}
