package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mattjoyce/interactions-gw/internal/interaction"
)

// Server represents the interaction HTTP server.
type Server struct {
	config    Config
	responder Responder
	gate      *Gate
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new interaction server instance.
func New(config Config, responder Responder, logger *slog.Logger) *Server {
	// Apply defaults
	if config.Listen == "" {
		config.Listen = DefaultListen
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}

	return &Server{
		config:    config,
		responder: responder,
		gate:      NewGate(config.PublicKey, config.MaxBodySize, logger),
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start listens on the configured address and serves until ctx is cancelled (blocking).
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("interaction server error: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then drains in-flight requests
// for up to ShutdownTimeout. It returns only after the drain has finished.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("interaction server starting", "listen", ln.Addr().String())

	// Run server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("interaction server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("interaction server shutdown failed: %w", err)
		}
		s.logger.Info("interaction server stopped")
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("interaction server error: %w", err)
	}
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	// The gate only checks POST; GET / passes through to the liveness handler unauthenticated.
	r.Group(func(r chi.Router) {
		r.Use(s.gate.Middleware)
		r.Get("/", s.handleLiveness)
		r.Post("/", s.handleInteraction)
	})

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleLiveness handles GET / (no signature required).
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, LivenessResponse{Result: "pong"})
}

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleInteraction handles authenticated interaction POSTs.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, ok := BodyFromContext(ctx)
	if !ok {
		// Only reachable if the route is mounted without the gate.
		s.logger.Error("interaction reached handler without a verified body", "path", r.URL.Path)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	req, err := interaction.Parse(body)
	if err != nil {
		s.handleParseError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, s.responder.Respond(ctx, req))
}

func (s *Server) handleParseError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetReqID(r.Context())

	var verr *interaction.ValidationError
	switch {
	case errors.As(err, &verr):
		s.logger.Info("interaction failed validation",
			"error", verr.Error(),
			"request_id", requestID,
		)
		s.respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid interaction",
			Details: verr.Fields,
		})
	case errors.Is(err, interaction.ErrMalformed):
		s.logger.Info("interaction body is not valid JSON", "request_id", requestID)
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
	default:
		s.logger.Error("failed to parse interaction", "error", err, "request_id", requestID)
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
