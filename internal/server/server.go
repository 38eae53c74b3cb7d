// Package server exposes the users and todos repositories over JSON HTTP.
// The public listener serves probes and the API; the admin listener is
// bound to loopback only.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unisergius/meetballs/internal/logger"
	"github.com/unisergius/meetballs/internal/store"
)

// Repository is the datastore surface the API serves.
type Repository interface {
	store.UserRepository
	store.TodoRepository
}

// Health reports whether the database schema is current. *migrate.Migrator
// satisfies it.
type Health interface {
	State(ctx context.Context) (store.StoreState, error)
	Version(ctx context.Context) (int64, error)
}

// Config holds listener settings.
type Config struct {
	Port            int
	AdminPort       int
	ShutdownTimeout time.Duration
	Version         string
}

// Server owns both HTTP listeners.
type Server struct {
	repo    Repository
	health  Health
	cfg     Config
	log     logger.Logger
	metrics *metrics
	reg     *prometheus.Registry
	started time.Time

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New creates a Server. A nil log discards output.
func New(repo Repository, health Health, cfg Config, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop{}
	}
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &Server{
		repo:       repo,
		health:     health,
		cfg:        cfg,
		log:        log,
		metrics:    m,
		reg:        reg,
		started:    time.Now(),
		shutdownCh: make(chan struct{}),
	}, nil
}

// Public returns the handler for probes and the JSON API.
func (s *Server) Public() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /ready", s.ready)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/users", s.listUsers)
	api.HandleFunc("POST /api/users", s.createUser)
	api.HandleFunc("GET /api/users/{id}", s.getUser)
	api.HandleFunc("PUT /api/users/{id}", s.updateUser)
	api.HandleFunc("DELETE /api/users/{id}", s.deleteUser)
	api.HandleFunc("GET /api/todos", s.listTodos)
	api.HandleFunc("POST /api/todos", s.createTodo)
	api.HandleFunc("GET /api/todos/{id}", s.getTodo)
	api.HandleFunc("PATCH /api/todos/{id}", s.completeTodo)
	api.HandleFunc("DELETE /api/todos/{id}", s.deleteTodo)
	mux.Handle("/api/", jsonOnly(api))

	return requestID(s.instrument(mux))
}

// Admin returns the handler for the loopback admin listener.
func (s *Server) Admin() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /admin/status", jsonOnly(http.HandlerFunc(s.status)))
	mux.Handle("POST /admin/shutdown", jsonOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
		s.Shutdown()
	})))
	mux.Handle("GET /admin/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))

	return requestID(mux)
}

// Shutdown asks Run to stop. It is safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// Run serves both listeners until ctx is done, Shutdown is called or a
// listener fails, then drains them within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	publicSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Public(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind admin to 127.0.0.1 only (loopback enforcement)
	adminListener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.cfg.AdminPort))
	if err != nil {
		return fmt.Errorf("admin listener bind failed (loopback only): %w", err)
	}
	adminSrv := &http.Server{
		Handler:           s.Admin(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		s.log.Info("public server listening on :%d", s.cfg.Port)
		if err := publicSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("public server error: %w", err)
		}
	}()

	go func() {
		s.log.Info("admin server listening on 127.0.0.1:%d (JSON-only)", s.cfg.AdminPort)
		if err := adminSrv.Serve(adminListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case <-s.shutdownCh:
		s.log.Info("shutdown requested through admin endpoint")
	case runErr = <-errCh:
		s.log.Error("%v", runErr)
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := publicSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("public server shutdown: %v", err)
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("admin server shutdown: %v", err)
	}
	s.log.Info("shutdown complete")
	return runErr
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	state, err := s.health.State(r.Context())
	if err != nil {
		s.log.Error("readiness check: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT READY"))
		return
	}
	if state != store.StateReady {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "NOT READY: %s", state)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"version": s.cfg.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	}
	state, err := s.health.State(r.Context())
	if err != nil {
		s.log.Error("status: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "could not read migration state")
		return
	}
	resp["state"] = state.String()
	v, err := s.health.Version(r.Context())
	if err != nil {
		s.log.Error("status: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "could not read schema version")
		return
	}
	resp["schemaVersion"] = v
	writeJSON(w, http.StatusOK, resp)
}
