package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsScrape(t *testing.T) {
	t.Parallel()

	metrics, err := NewMetrics(func() int { return 7 })
	if err != nil {
		t.Fatalf("NewMetrics() error = %v, want nil", err)
	}

	metrics.RunCompleted("success")
	metrics.RunCompleted("success")
	metrics.RunCompleted("no_commits")
	metrics.ObserveStage("fetching", 250*time.Millisecond)

	recorder := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", recorder.Code)
	}

	body := recorder.Body.String()
	if !strings.Contains(body, `contribase_analysis_runs_total{outcome="success"} 2`) {
		t.Fatalf("GET /metrics missing success counter:\n%s", body)
	}
	if !strings.Contains(body, `contribase_analysis_runs_total{outcome="no_commits"} 1`) {
		t.Fatalf("GET /metrics missing no_commits counter:\n%s", body)
	}
	if !strings.Contains(body, "contribase_stage_duration_seconds") {
		t.Fatalf("GET /metrics missing stage histogram:\n%s", body)
	}
	if !strings.Contains(body, "contribase_progress_entries 7") {
		t.Fatalf("GET /metrics missing progress gauge:\n%s", body)
	}
}

func TestMetricsWithoutEntryGauge(t *testing.T) {
	t.Parallel()

	metrics, err := NewMetrics(nil)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v, want nil", err)
	}

	recorder := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if strings.Contains(recorder.Body.String(), "contribase_progress_entries") {
		t.Fatalf("GET /metrics includes progress gauge without a counter source:\n%s", recorder.Body.String())
	}
}
