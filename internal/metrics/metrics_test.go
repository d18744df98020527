package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobObserverRecordsOutcomes(t *testing.T) {
	obs := NewJobObserver()
	if got := testutil.ToFloat64(ConversionState.WithLabelValues("idle")); got != 1 {
		t.Fatalf("expected idle state gauge 1, got %v", got)
	}

	before := testutil.ToFloat64(JobsTotal.WithLabelValues("convert", "conversion"))
	obs.StateChanged("busy")
	obs.JobStarted("convert")
	if got := testutil.ToFloat64(JobsInFlight); got != 1 {
		t.Fatalf("expected one job in flight, got %v", got)
	}
	obs.JobFinished("convert", "conversion", 2*time.Second)
	obs.StateChanged("done")

	if got := testutil.ToFloat64(JobsInFlight); got != 0 {
		t.Fatalf("expected no jobs in flight, got %v", got)
	}
	if got := testutil.ToFloat64(JobsTotal.WithLabelValues("convert", "conversion")); got != before+1 {
		t.Fatalf("expected counter increment, got %v (before %v)", got, before)
	}
	if testutil.ToFloat64(ConversionState.WithLabelValues("done")) != 1 || testutil.ToFloat64(ConversionState.WithLabelValues("busy")) != 0 {
		t.Fatal("expected only the done state to be active")
	}
}

func TestSetTranscoderReady(t *testing.T) {
	SetTranscoderReady("resource")
	if got := testutil.ToFloat64(TranscoderReady.WithLabelValues("resource")); got != 1 {
		t.Fatalf("expected ready gauge 1, got %v", got)
	}
	SetTranscoderReady("")
	if got := testutil.CollectAndCount(TranscoderReady); got != 1 {
		t.Fatalf("expected a single series after reset, got %d", got)
	}
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Middleware("/metrics"))
	r.HandleFunc("/api/jobs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods("GET")

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/jobs/{id}", "404"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/jobs/{id}", "404")); got != before+1 {
		t.Fatalf("expected templated path counter increment, got %v", got)
	}
}
