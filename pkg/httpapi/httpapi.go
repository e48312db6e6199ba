// Package httpapi exposes the orchestrator over HTTP: a streaming
// ask endpoint and session management routes, matching the external
// interface a ReAct agent service needs to offer an HTTP client.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kadirpekel/sentinel/pkg/orchestrator"
	"github.com/kadirpekel/sentinel/pkg/session"
	"github.com/kadirpekel/sentinel/pkg/sse"
)

// Recorder is the subset of internal/metrics.Metrics this package
// needs, kept as an interface so handlers can be tested without
// pulling in a real Prometheus registry.
type Recorder interface {
	RecordHTTPRequest(route string, status int, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordHTTPRequest(string, int, time.Duration) {}

// API wires an Orchestrator into an http.Handler.
type API struct {
	Orchestrator *orchestrator.Orchestrator
	Metrics      Recorder
}

// Router builds the chi router for this API.
func (a *API) Router() http.Handler {
	if a.Metrics == nil {
		a.Metrics = noopRecorder{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(a.metricsMiddleware)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", a.listSessions)
		r.Post("/{id}/ask", a.ask)
		r.Get("/{id}", a.sessionInfo)
		r.Post("/{id}/clear", a.clearSession)
		r.Delete("/{id}", a.deleteSession)
	})

	return r
}

type askRequest struct {
	Question        string  `json:"question"`
	Language        string  `json:"language"`
	Persona         string  `json:"persona"`
	Model           string  `json:"model"`
	MaxSteps        int     `json:"max_steps"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

func (a *API) ask(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" || sessionID == "-" {
		sessionID = uuid.NewString()
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cfg := orchestrator.RunConfig{
		Language:        req.Language,
		Persona:         req.Persona,
		ModelName:       req.Model,
		MaxSteps:        req.MaxSteps,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}

	ch := a.Orchestrator.Run(r.Context(), req.Question, sessionID, cfg)
	_ = writer.Stream(ch)
}

func (a *API) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := a.Orchestrator.Sessions.ListSessions(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (a *API) sessionInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	count, err := a.Orchestrator.Sessions.MessageCount(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "message_count": count})
}

func (a *API) clearSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Orchestrator.Sessions.Clear(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Orchestrator.Sessions.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if err == session.ErrNotFound {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusCapture wraps http.ResponseWriter to record the status code
// written, so metricsMiddleware can observe it after the handler
// returns. It also forwards Flush so SSE handlers downstream keep
// working through the middleware chain.
type statusCapture struct {
	http.ResponseWriter
	status int
}

func (s *statusCapture) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusCapture) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (a *API) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusCapture{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		a.Metrics.RecordHTTPRequest(route, wrapped.status, time.Since(start))
	})
}
