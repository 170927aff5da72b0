package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStatusEvaluatorEvaluate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		input     Input
		wantReady bool
		wantMode  Mode
	}{
		{
			name: "all_healthy",
			input: Input{
				StoreHealthy:       true,
				GitHubClientUsable: true,
				AIConfigured:       true,
			},
			wantReady: true,
			wantMode:  ModeHealthy,
		},
		{
			name: "degraded_without_ai",
			input: Input{
				StoreHealthy:       true,
				GitHubClientUsable: true,
				AIConfigured:       false,
			},
			wantReady: true,
			wantMode:  ModeDegraded,
		},
		{
			name: "unhealthy_without_store",
			input: Input{
				StoreHealthy:       false,
				GitHubClientUsable: true,
				AIConfigured:       true,
			},
			wantReady: false,
			wantMode:  ModeUnhealthy,
		},
		{
			name: "unhealthy_without_github",
			input: Input{
				StoreHealthy:       true,
				GitHubClientUsable: false,
				AIConfigured:       true,
			},
			wantReady: false,
			wantMode:  ModeUnhealthy,
		},
	}

	evaluator := NewStatusEvaluator()
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			status := evaluator.Evaluate(testCase.input)
			if status.Ready != testCase.wantReady {
				t.Fatalf("Evaluate() ready = %v, want %v", status.Ready, testCase.wantReady)
			}
			if status.Mode != testCase.wantMode {
				t.Fatalf("Evaluate() mode = %q, want %q", status.Mode, testCase.wantMode)
			}
			if len(status.Components) != 3 {
				t.Fatalf("Evaluate() components = %v, want 3 entries", status.Components)
			}
		})
	}
}

type staticProvider struct {
	status Status
}

func (p staticProvider) CurrentStatus(context.Context) Status {
	return p.status
}

func TestHandlerEndpoints(t *testing.T) {
	t.Parallel()

	ready := NewHandler(staticProvider{status: Status{
		Mode:  ModeHealthy,
		Ready: true,
		Components: map[string]bool{
			"progress_store": true,
		},
	}})
	notReady := NewHandler(staticProvider{status: Status{
		Mode:  ModeUnhealthy,
		Ready: false,
	}})

	recorder := httptest.NewRecorder()
	ready.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("GET /livez status = %d, want 200", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	ready.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if recorder.Code != http.StatusOK || !strings.Contains(recorder.Body.String(), "ready") {
		t.Fatalf("GET /readyz = (%d, %q), want 200 ready", recorder.Code, recorder.Body.String())
	}

	recorder = httptest.NewRecorder()
	notReady.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /readyz when unhealthy status = %d, want 503", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	ready.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("GET /healthz status = %d, want 200", recorder.Code)
	}
	var status Status
	if err := json.Unmarshal(recorder.Body.Bytes(), &status); err != nil {
		t.Fatalf("GET /healthz body unmarshal error = %v, want JSON status", err)
	}
	if status.Mode != ModeHealthy || !status.Components["progress_store"] {
		t.Fatalf("GET /healthz = %+v, want healthy status payload", status)
	}
}
