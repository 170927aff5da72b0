package app

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Hobby2025/Contribase-sub000/internal/pipeline"
	"github.com/Hobby2025/Contribase-sub000/internal/progress"
	"github.com/Hobby2025/Contribase-sub000/internal/telemetry"
)

var repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Server exposes the analysis API.
type Server struct {
	runner *pipeline.Runner
	store  progress.Store
	logger *zap.Logger
}

// NewServer creates the API server.
func NewServer(runner *pipeline.Runner, store progress.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{runner: runner, store: store, logger: logger}
}

// NewHTTPHandler wires the analysis API, metrics, and health endpoints on a
// single mux.
func NewHTTPHandler(server *Server, metricsHandler, healthHandler http.Handler) http.Handler {
	router := chi.NewRouter()
	traceMode := telemetry.TraceMode()

	router.Method(http.MethodPost, "/api/analysis/{owner}/{repo}",
		wrapHTTPHandler(traceMode, "analysis.start", http.HandlerFunc(server.handleStartAnalysis)))
	router.Method(http.MethodGet, "/api/analysis/{owner}/{repo}/progress",
		wrapHTTPHandler(traceMode, "analysis.progress", http.HandlerFunc(server.handleProgress)))
	router.Method(http.MethodDelete, "/api/analysis/{owner}/{repo}",
		wrapHTTPHandler(traceMode, "analysis.delete", http.HandlerFunc(server.handleDelete)))

	router.Handle("/metrics", wrapHTTPHandler(traceMode, "metrics", metricsHandler))
	router.Handle("/livez", wrapHTTPHandler(traceMode, "livez", healthHandler))
	router.Handle("/readyz", wrapHTTPHandler(traceMode, "readyz", healthHandler))
	router.Handle("/healthz", wrapHTTPHandler(traceMode, "healthz", healthHandler))
	return router
}

// handleStartAnalysis launches an analysis run. A run already in flight for
// the same repository is not restarted; its current progress is returned.
func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	owner, repo, ok := s.repoParams(w, r)
	if !ok {
		return
	}

	record, found, err := s.store.Get(r.Context(), owner, repo)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "progress store unavailable")
		return
	}
	if found && !record.Completed {
		s.writeJSON(w, http.StatusAccepted, record)
		return
	}

	req := pipeline.Request{
		Owner:     owner,
		Repo:      repo,
		UserLogin: strings.TrimSpace(r.URL.Query().Get("login")),
		UserEmail: strings.TrimSpace(r.URL.Query().Get("email")),
	}
	s.runner.Start(r.Context(), req)

	s.writeJSON(w, http.StatusAccepted, progress.Record{
		Progress: 0,
		Stage:    progress.StagePreparing,
	})
}

// handleProgress reports the current run state. Unknown repositories report
// zero progress in the not_started stage so polling clients need no special
// casing.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	owner, repo, ok := s.repoParams(w, r)
	if !ok {
		return
	}

	record, found, err := s.store.Get(r.Context(), owner, repo)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "progress store unavailable")
		return
	}
	if !found {
		record = progress.Record{Progress: 0, Stage: progress.StageNotStarted}
	}
	s.writeJSON(w, http.StatusOK, record)
}

// handleDelete discards the stored record so the next poll starts clean.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner, repo, ok := s.repoParams(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), owner, repo); err != nil {
		s.writeError(w, http.StatusInternalServerError, "progress store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) repoParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	owner := chi.URLParam(r, "owner")
	repo := chi.URLParam(r, "repo")
	if !repoNamePattern.MatchString(owner) || !repoNamePattern.MatchString(repo) {
		s.writeError(w, http.StatusBadRequest, "invalid owner or repository name")
		return "", "", false
	}
	return owner, repo, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func wrapHTTPHandler(traceMode, route string, handler http.Handler) http.Handler {
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	if strings.EqualFold(strings.TrimSpace(traceMode), "off") {
		return handler
	}

	operation := strings.TrimSpace(route)
	if operation == "" {
		operation = "handler"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := otel.Tracer("contribase/internal/app").Start(
			r.Context(),
			"http.server."+operation,
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		recorder := &statusCapturingResponseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}
		handler.ServeHTTP(recorder, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", recorder.status))
		if recorder.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.status))
			return
		}
		span.SetStatus(codes.Ok, "request completed")
	})
}

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingResponseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
