// Package http exposes an Arbor engine over a JSON HTTP API with
// websocket event streams for live reading sessions.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/telemetry"
	"github.com/aretw0/arbor/pkg/authoring"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/registry"
)

// Server serves one engine. It keeps the editors and reading sessions
// opened through the API until they are closed.
type Server struct {
	engine  *arbor.Engine
	metrics *telemetry.Metrics
	logger  *slog.Logger
	hub     *Hub

	editors  *registry.Registry[*authoring.Editor]
	sessions *registry.Registry[*arbor.Session]
	editorMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics shares a metrics registry with the rest of the process.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server for engine.
func NewServer(engine *arbor.Engine, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		editors:  registry.NewRegistry[*authoring.Editor](),
		sessions: registry.NewRegistry[*arbor.Session](),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.metrics == nil {
		s.metrics = telemetry.New()
	}
	s.hub = NewHub(s.logger)
	return s
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine *arbor.Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Handler()
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	r.Use(enableCORS)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/units/{unit}", func(r chi.Router) {
		r.Get("/graph", s.getGraph)
		r.Get("/graph.mmd", s.getMermaid)
		r.Get("/validate", s.validate)
		r.Post("/nodes", s.createNode)
		r.Patch("/nodes/{node}", s.updateNode)
		r.Delete("/nodes/{node}", s.removeNode)
		r.Post("/edges", s.connect)
		r.Delete("/edges/{edge}", s.disconnect)
		r.Post("/placements", s.place)
		r.Post("/flush", s.flush)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.openSession)
		r.Get("/{id}", s.getSession)
		r.Post("/{id}/advance", s.advance)
		r.Post("/{id}/choose", s.choose)
		r.Delete("/{id}", s.closeSession)
		r.Get("/{id}/events", s.serveEvents)
	})
	return r
}

// Close flushes every open editor and closes every live session.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	for _, unit := range s.editors.Names() {
		if ed, ok := s.editors.Remove(unit); ok {
			errs = append(errs, ed.Close(ctx))
		}
	}
	for _, id := range s.sessions.Names() {
		errs = append(errs, s.dropSession(id))
	}
	return errors.Join(errs...)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  arbor.Version,
		"sessions": s.sessions.Len(),
		"editors":  s.editors.Len(),
	})
}

// instrument records request counts and latency by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRequest(r.Method, route, status, time.Since(start))
		s.logger.Debug("HTTP request", "method", r.Method, "route", route, "status", status)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// -- Helpers --

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorResponse{Error: err.Error()})
}

var errBadRequest = errors.New("invalid request body")

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnitNotFound),
		errors.Is(err, domain.ErrStoryNotFound),
		errors.Is(err, domain.ErrSceneNotFound),
		errors.Is(err, domain.ErrProgressNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSessionClosed),
		errors.Is(err, domain.ErrEditorClosed):
		return http.StatusGone
	case errors.Is(err, domain.ErrSlotOccupied),
		errors.Is(err, domain.ErrDuplicateStart),
		errors.Is(err, domain.ErrDuplicateVariable),
		errors.Is(err, domain.ErrStartRemoval),
		errors.Is(err, domain.ErrNoChoicePending):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidChoice),
		errors.Is(err, domain.ErrInvalidConnection),
		errors.Is(err, domain.ErrInvalidNode),
		errors.Is(err, domain.ErrInvalidPlacement),
		errors.Is(err, domain.ErrDanglingReference):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
