package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
)

// HTTPServer serves the command surface at POST /v1/commands/{command}.
type HTTPServer struct {
	addr    string
	handler Handler
	logger  *zap.Logger
	baseCtx context.Context // Cancelled only at shutdown
	server  *http.Server
}

// NewHTTPServer creates a server listening on addr.
func NewHTTPServer(addr string, handler Handler, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{addr: addr, handler: handler, logger: logger, baseCtx: context.Background()}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.baseCtx = ctx
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("http bridge starting", zap.String("listen", s.addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http bridge shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http bridge: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("http bridge failed: %w", err)
	}
}

// Routes returns the router.
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/v1/commands/{command}", s.handleCommand)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, domain.CommandResponse{
			Error: &domain.ResponseError{
				Kind:    domain.KindUnknownCommand,
				Message: fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path),
			},
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, domain.CommandResponse{
			Error: &domain.ResponseError{
				Kind:    domain.KindBadPayload,
				Message: fmt.Sprintf("method %s not allowed for %s", r.Method, r.URL.Path),
			},
		})
	})

	return r
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	commands := make([]string, 0, len(domain.Commands()))
	for _, c := range domain.Commands() {
		commands = append(commands, c.String())
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"commands": commands,
	})
}

// handleCommand handles POST /v1/commands/{command}. The body is the payload.
func (s *HTTPServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(middleware.RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		status := http.StatusBadRequest
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		respondJSON(w, status, malformedRequest(id, err))
		return
	}

	if len(body) > 0 && !json.Valid(body) {
		respondJSON(w, http.StatusBadRequest, malformedRequest(id, errors.New("body is not valid JSON")))
		return
	}

	req := domain.CommandRequest{
		ID:      id,
		Command: chi.URLParam(r, "command"),
		Payload: body,
	}
	// Client disconnects must not cancel a launch; only shutdown does.
	resp := s.handler.Handle(s.baseCtx, req)
	w.Header().Set(middleware.RequestIDHeader, id)
	respondJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
