package metrics

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func freshMetrics(t *testing.T, subsystem string) *Metrics {
	t.Helper()
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg
	return InitMetrics("test", subsystem)
}

func TestInitMetrics(t *testing.T) {
	m := freshMetrics(t, "service")

	if m == nil {
		t.Fatal("InitMetrics returned nil")
	}
	if m.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal should not be nil")
	}
	if m.RecordWritesTotal == nil {
		t.Error("RecordWritesTotal should not be nil")
	}
	if m.StatisticsCacheHits == nil {
		t.Error("StatisticsCacheHits should not be nil")
	}
}

func TestGet(t *testing.T) {
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	defaultMetrics = nil

	m := Get()
	if m == nil {
		t.Fatal("Get() should not return nil")
	}

	if m2 := Get(); m2 != m {
		t.Error("Get() should return same instance")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m := freshMetrics(t, "http")

	m.RecordHTTPRequest("GET /api/v1/records", http.MethodGet, 200, 100*time.Millisecond)
	m.RecordHTTPRequest("GET /api/v1/records", http.MethodGet, 200, 50*time.Millisecond)
	m.RecordHTTPRequest("POST /api/v1/records", http.MethodPost, 422, 10*time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET /api/v1/records", "GET", "200")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
}

func TestRecordWrite(t *testing.T) {
	m := freshMetrics(t, "writes")

	m.RecordWrite("create", true)
	m.RecordWrite("create", false)
	m.RecordWrite("create", true)

	if got := testutil.ToFloat64(m.RecordWritesTotal.WithLabelValues("create", "success")); got != 2 {
		t.Errorf("successful creates = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RecordWritesTotal.WithLabelValues("create", "error")); got != 1 {
		t.Errorf("failed creates = %v, want 1", got)
	}
}

func TestRecordImportExport(t *testing.T) {
	m := freshMetrics(t, "exchange")

	m.RecordImport("csv", true, 12)
	m.RecordImport("json", false, 0)
	m.RecordExport("pdf", true, 20480)
	m.RecordWarnings("OLD_DATE", "DISTANCE_PER_DAY", "OLD_DATE")

	if got := testutil.ToFloat64(m.ImportsTotal.WithLabelValues("json", "error")); got != 1 {
		t.Errorf("failed json imports = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ExportsTotal.WithLabelValues("pdf", "success")); got != 1 {
		t.Errorf("pdf exports = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ValidationWarnings.WithLabelValues("OLD_DATE")); got != 2 {
		t.Errorf("OLD_DATE warnings = %v, want 2", got)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	m := freshMetrics(t, "cache")

	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(true)

	if got := testutil.ToFloat64(m.StatisticsCacheHits.WithLabelValues("hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
}

func TestSetServiceInfo(t *testing.T) {
	m := freshMetrics(t, "info")

	m.SetServiceInfo("1.0.0", "production")

	if got := testutil.ToFloat64(m.ServiceInfo.WithLabelValues("1.0.0", "production")); got != 1 {
		t.Errorf("service_info = %v, want 1", got)
	}
}

func TestStoreCollector(t *testing.T) {
	collector := NewStoreCollector("test", "store", "memory", func(context.Context) (int64, error) {
		return 42, nil
	})

	descCh := make(chan *prometheus.Desc, 4)
	collector.Describe(descCh)
	close(descCh)
	if len(descCh) != 2 {
		t.Errorf("expected 2 descriptors, got %d", len(descCh))
	}

	if got := testutil.CollectAndCount(collector); got != 2 {
		t.Errorf("expected 2 metrics, got %d", got)
	}
}

func TestStoreCollector_CountError(t *testing.T) {
	collector := NewStoreCollector("test", "store", "postgres", func(context.Context) (int64, error) {
		return 0, errors.New("connection refused")
	})

	// Только store_up = 0
	if got := testutil.CollectAndCount(collector); got != 1 {
		t.Errorf("expected 1 metric, got %d", got)
	}
}

func TestRequestTracker(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_in_flight",
	})

	tracker := NewRequestTracker(gauge)

	tracker.Start("/records")
	tracker.Start("/records")
	tracker.Start("/statistics")

	if tracker.Active("/records") != 2 {
		t.Errorf("active[/records] = %d, want 2", tracker.Active("/records"))
	}

	tracker.End("/records")
	if tracker.Active("/records") != 1 {
		t.Errorf("active[/records] = %d, want 1", tracker.Active("/records"))
	}

	// End больше, чем Start, не уводит счётчик в минус
	tracker.End("/records")
	tracker.End("/records")
	if tracker.Active("/records") != 0 {
		t.Error("active count should not go negative")
	}
	if got := testutil.ToFloat64(gauge); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
}

func TestTimer(t *testing.T) {
	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_duration",
			Buckets: []float64{.01, .1, 1},
		},
		[]string{"kind"},
	)

	timer := NewTimer(histogram, "statistics")

	time.Sleep(10 * time.Millisecond)

	duration := timer.ObserveDuration()
	if duration < 10*time.Millisecond {
		t.Errorf("duration = %v, expected >= 10ms", duration)
	}
}

func TestHandler(t *testing.T) {
	if Handler() == nil {
		t.Error("Handler() should not return nil")
	}
}
