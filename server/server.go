package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/internal/metrics"
	"github.com/hupe1980/personasim/logging"
	"github.com/hupe1980/personasim/persona"
	"github.com/hupe1980/personasim/results"
	"github.com/hupe1980/personasim/runner"
)

var (
	errBadRequest = errors.New("bad request")
	// errImportUnavailable is returned by the import route when no personas
	// directory is configured or the store cannot import.
	errImportUnavailable = errors.New("persona import not available")
)

// BatchRunner runs one batch. *runner.Runner implements it.
type BatchRunner interface {
	RunBatch(ctx context.Context, req runner.BatchRequest) (*core.BatchResult, error)
}

// Options configures the server.
type Options struct {
	// Results backs the batch lookup routes; they answer 404 without it.
	Results results.Store
	Metrics *metrics.Collector
	Logger  logging.Logger
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64
	// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
	ShutdownTimeout time.Duration
	// PersonasDir is imported by POST /api/personas/import. Clients cannot
	// choose the directory.
	PersonasDir string
}

// Server serves the HTTP API.
type Server struct {
	personas persona.Store
	batches  BatchRunner
	opts     Options
	logger   logging.Logger
	router   chi.Router
}

// New wires the routes.
func New(personas persona.Store, batches BatchRunner, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:          logging.NoOpLogger{},
		MaxBodyBytes:    1 << 20,
		ShutdownTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &Server{
		personas: personas,
		batches:  batches,
		opts:     opts,
		logger:   logging.OrNoOp(opts.Logger).With("component", "server"),
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/personas", s.handleListPersonas)
		api.Post("/personas/import", s.handleImportPersonas)
		api.Get("/personas/{id}", s.handleGetPersona)
		api.Post("/batches", s.handleRunBatch)
		api.Get("/batches", s.handleListBatches)
		api.Get("/batches/{id}", s.handleGetBatch)
	})
	return r
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// observe logs and records metrics for every request, labeled by route
// pattern to keep cardinality bounded.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.opts.Metrics.RecordHTTPRequest(r.Method, pattern, status, elapsed)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", elapsed.String(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	filter := persona.Filter{}
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		if key == "limit" {
			n, err := strconv.Atoi(values[0])
			if err != nil || n < 0 {
				s.respondError(w, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest))
				return
			}
			filter.Limit = n
			continue
		}
		if filter.Attributes == nil {
			filter.Attributes = map[string]string{}
		}
		filter.Attributes[key] = values[0]
	}

	ps, err := s.personas.List(r.Context(), filter)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if ps == nil {
		ps = []core.Persona{}
	}
	s.respondJSON(w, http.StatusOK, ps)
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p, err := s.personas.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleImportPersonas(w http.ResponseWriter, r *http.Request) {
	importer, ok := s.personas.(persona.Importer)
	if !ok || s.opts.PersonasDir == "" {
		s.respondError(w, errImportUnavailable)
		return
	}
	n, err := importer.ImportDir(r.Context(), s.opts.PersonasDir)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.logger.Info("imported personas", "dir", s.opts.PersonasDir, "count", n)
	s.respondJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	var req runner.BatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	res, err := s.batches.RunBatch(r.Context(), req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	if s.opts.Results == nil {
		s.respondJSON(w, http.StatusOK, []*core.BatchResult{})
		return
	}
	rs, err := s.opts.Results.List(r.Context(), r.URL.Query().Get("persona_id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rs)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	if s.opts.Results == nil {
		s.respondError(w, results.ErrNotFound)
		return
	}
	res, err := s.opts.Results.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}
