package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/signalsfoundry/ephemeris-store/core"
	"github.com/signalsfoundry/ephemeris-store/model"
)

var _ core.MetricsRecorder = (*StoreCollector)(nil)

func TestCollectorRecordsQueries(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewStoreCollector(reg)
	if err != nil {
		t.Fatalf("NewStoreCollector: %v", err)
	}

	collector.ObserveQuery("ok", 0.0001)
	collector.ObserveQuery("ok", 0.0002)
	collector.ObserveQuery("data_gap", 0.0001)

	if got := testutil.ToFloat64(collector.Queries.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok queries = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Queries.WithLabelValues("data_gap")); got != 1 {
		t.Errorf("data_gap queries = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "ephemeris_query_duration_seconds"); count != 3 {
		t.Errorf("duration sample_count = %d, want 3", count)
	}
}

func TestCollectorRecordsIngestion(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewStoreCollector(reg)
	if err != nil {
		t.Fatalf("NewStoreCollector: %v", err)
	}

	collector.AddIngested("position", 96)
	collector.AddRejected("clock", "bad", 2)
	collector.SetStoreCounts(32, 3072, 3072)

	if got := testutil.ToFloat64(collector.Ingested.WithLabelValues("position")); got != 96 {
		t.Errorf("ingested = %v, want 96", got)
	}
	if got := testutil.ToFloat64(collector.Rejected.WithLabelValues("clock", "bad")); got != 2 {
		t.Errorf("rejected = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Satellites); got != 32 {
		t.Errorf("satellites gauge = %v, want 32", got)
	}
}

func TestCollectorDrivenByStore(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewStoreCollector(reg)
	if err != nil {
		t.Fatalf("NewStoreCollector: %v", err)
	}

	store := core.New()
	store.SetMetrics(collector)

	sat := model.SatelliteID{System: model.SystemGPS, ID: 1}
	at := model.NewInstant(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), model.TimeGPS)

	if xvt := store.ComputeXvt(sat, at); xvt.Health != model.HealthUnavailable {
		t.Fatalf("health = %v, want Unavailable on empty store", xvt.Health)
	}
	if got := testutil.ToFloat64(collector.Queries.WithLabelValues("unknown_satellite")); got != 1 {
		t.Errorf("unknown_satellite queries = %v, want 1", got)
	}

	if err := store.AddPositionRecord(sat, at, model.PositionRecord{Pos: model.Triple{X: 1}}); err != nil {
		t.Fatalf("AddPositionRecord: %v", err)
	}
	if got := testutil.ToFloat64(collector.PositionSamples); got != 1 {
		t.Errorf("position samples gauge = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewStoreCollector(reg)
	if err != nil {
		t.Fatalf("NewStoreCollector: %v", err)
	}
	collector.SetStoreCounts(3, 288, 288)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	body := rr.Body.String()
	for _, want := range []string{"ephemeris_satellites 3", "ephemeris_position_samples 288"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewStoreCollector(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewStoreCollector(reg); err == nil {
		t.Errorf("second registration against the same registry succeeded")
	}
}

func histogramSampleCount(t *testing.T, g prometheus.Gatherer, name string) uint64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found *dto.Histogram
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if h := m.GetHistogram(); h != nil {
				found = h
			}
		}
	}
	if found == nil {
		t.Fatalf("histogram %s not found", name)
	}
	return found.GetSampleCount()
}
