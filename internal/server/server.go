// Package server exposes the chat pipeline over HTTP: the chat endpoint, the
// session endpoints, the complete-flow trigger, and a websocket feed of
// monitor events.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/patienthero/patienthero/internal/agent"
	"github.com/patienthero/patienthero/internal/appointments"
	"github.com/patienthero/patienthero/internal/comfort"
	"github.com/patienthero/patienthero/internal/config"
	"github.com/patienthero/patienthero/internal/guard"
	"github.com/patienthero/patienthero/internal/logging"
	"github.com/patienthero/patienthero/internal/monitor"
	"github.com/patienthero/patienthero/internal/search"
	"github.com/patienthero/patienthero/internal/store"
	"github.com/patienthero/patienthero/internal/version"
)

// Deadlines for the two slow paths: a patient-facing chat turn and the
// background appointment pass kicked off by complete-flow.
const (
	chatTimeout = 2 * time.Minute
	flowTimeout = 5 * time.Minute
)

// Server is the PatientHero HTTP + WebSocket API server.
type Server struct {
	cfg     config.Config
	log     *logging.Logger
	runner  *agent.Runner
	store   store.SessionStore
	guard   *guard.Validator
	monitor *monitor.Monitor
	guide   *comfort.Guide

	// Optional; nil disables the complete flow's search and scrape halves.
	searcher search.Searcher
	appts    *appointments.Processor

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithSearcher sets the institution search provider.
func WithSearcher(s search.Searcher) ServerOption {
	return func(srv *Server) { srv.searcher = s }
}

// WithAppointments sets the background appointment processor.
func WithAppointments(p *appointments.Processor) ServerOption {
	return func(srv *Server) { srv.appts = p }
}

// New creates the API server.
func New(
	cfg config.Config,
	runner *agent.Runner,
	st store.SessionStore,
	validator *guard.Validator,
	mon *monitor.Monitor,
	log *logging.Logger,
	opts ...ServerOption,
) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log.Sub("server"),
		runner:  runner,
		store:   st,
		guard:   validator,
		monitor: mon,
		guide:   comfort.NewGuide(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Server.CORSOrigins),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// checkWebSocketOrigin validates websocket Origin headers against the CORS
// allowlist. Requests without an Origin header (non-browser clients) pass.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Handler returns the full route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/status/{session_id}", s.handleStatus)
	mux.HandleFunc("POST /api/complete-flow/{session_id}", s.handleCompleteFlow)
	mux.HandleFunc("GET /api/comfort-guidance/{session_id}", s.handleComfortGuidance)
	mux.HandleFunc("GET /api/session/{session_id}/summary", s.handleSummary)
	mux.HandleFunc("DELETE /api/session/{session_id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/guardrails/status", s.handleGuardrailStatus)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /ws/events", s.handleEventsWS)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("/", handleNotFound)

	return withMiddleware(mux, s.log, s.cfg.Server.CORSOrigins)
}

// Start listens on the configured bind address and blocks until the context
// is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Server.Bind

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("version", version.Version).
		Msg("api server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return s.cfg.Server.Bind
}
