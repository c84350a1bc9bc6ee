package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	return rec.Body.String()
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()
	if registry.registry == nil || registry.Cosmos() == nil {
		t.Fatal("expected registry with cosmos metrics")
	}
}

func TestRegistry_GoRuntimeMetricsExposed(t *testing.T) {
	body := scrape(t, NewRegistry())
	for _, metric := range []string{"go_goroutines", "go_gc_duration_seconds", "process_cpu_seconds_total"} {
		if !strings.Contains(body, metric) {
			t.Errorf("expected Go runtime metric %s not found in output", metric)
		}
	}
}

func TestRegistry_CosmosMetricsExposed(t *testing.T) {
	registry := NewRegistry()
	registry.Cosmos().ObserveOperation("calls", "upsert", OutcomeSuccess, 20*time.Millisecond, 5.5)
	registry.Cosmos().IncUpsertRetry("calls")

	body := scrape(t, registry)
	for _, metric := range []string{
		"cosmos_operations_total",
		"cosmos_operation_duration_seconds",
		"cosmos_request_charge_total",
		"cosmos_upsert_retries_total",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("expected metric %s not found in output", metric)
		}
	}
}

func TestCosmosMetrics_ObserveOperation(t *testing.T) {
	m := NewCosmosMetrics()
	m.ObserveOperation("quotes", "get", OutcomeSuppressed, time.Millisecond, 0)
	m.ObserveOperation("quotes", "get", OutcomeSuppressed, time.Millisecond, 1)
	m.ObserveOperation("quotes", "get", OutcomeSuccess, time.Millisecond, 2.5)

	if got := promtestutil.ToFloat64(m.operations.WithLabelValues("quotes", "get", OutcomeSuppressed)); got != 2 {
		t.Fatalf("expected 2 suppressed operations, got %v", got)
	}
	if got := promtestutil.ToFloat64(m.requestCharge.WithLabelValues("quotes", "get")); got != 3.5 {
		t.Fatalf("expected 3.5 request units, got %v", got)
	}
}

func TestCosmosMetrics_NilIsNoop(t *testing.T) {
	var m *CosmosMetrics
	m.ObserveOperation("calls", "get", OutcomeSuccess, time.Millisecond, 1)
	m.IncUpsertRetry("calls")
}

func TestRegistry_RegisterCustomMetric(t *testing.T) {
	registry := NewRegistry()
	customCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_custom_counter",
		Help: "A test custom counter",
	})
	if err := registry.Register(customCounter); err != nil {
		t.Fatalf("failed to register custom metric: %v", err)
	}
	customCounter.Inc()

	if body := scrape(t, registry); !strings.Contains(body, "test_custom_counter 1") {
		t.Error("custom metric value not correct")
	}
	if !registry.Unregister(customCounter) {
		t.Fatal("expected custom metric to be unregistered")
	}
}

func TestRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	registry := NewRegistry()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	registry.MustRegister(NewCosmosMetrics().Collectors()...)
}
