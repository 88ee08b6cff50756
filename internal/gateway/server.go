package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"github.com/roman-kulish/groundlink/internal/link"
	"github.com/roman-kulish/groundlink/internal/vehicle"
)

const (
	defaultRequestTimeout = 2 * time.Second
	shutdownTimeout       = 5 * time.Second
	readHeaderTimeout     = 5 * time.Second
	maxBodyBytes          = 4 << 10
)

// Controller is the part of the event loop the gateway drives.
type Controller interface {
	Submit(ctx context.Context, cmd vehicle.Command) error
	State(ctx context.Context) (vehicle.Snapshot, error)
	Subscribe(ctx context.Context) (<-chan vehicle.Event, func())
}

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(s *Server) {
	return func(s *Server) {
		s.logger = logger.With(slog.String("component", "gateway"))
	}
}

// WithRequestTimeout bounds how long a request waits for the event loop.
func WithRequestTimeout(d time.Duration) func(s *Server) {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// Server exposes the vehicle state and command surface over HTTP, and pushes
// change events to WebSocket clients.
type Server struct {
	ctrl Controller
	mux  *http.ServeMux

	requestTimeout time.Duration
	logger         *slog.Logger
}

// NewServer creates a Server driving ctrl.
func NewServer(ctrl Controller, options ...func(s *Server)) *Server {
	s := Server{
		ctrl:           ctrl,
		mux:            http.NewServeMux(),
		requestTimeout: defaultRequestTimeout,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	s.routes()
	return &s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.health)
	s.mux.HandleFunc("GET /state", s.state)

	s.mux.HandleFunc("POST /command/{type}", s.command)

	s.mux.Handle("GET /ws", websocket.Handler(s.serveWS))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
// WebSocket sessions are bound to ctx and end with it.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	st, err := s.ctrl.State(ctx)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) command(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		return
	}

	cmd, err := decodeCommand(vehicle.CommandType(r.PathValue("type")), body, time.Now())
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	if err = s.ctrl.Submit(ctx, cmd); err != nil {
		s.logger.Warn("command failed", slog.String("type", string(cmd.Type())), slog.String("error", err.Error()))
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "accepted", "type": cmd.Type()})
}

// statusFor maps command and state errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrUnknownCommand),
		errors.Is(err, vehicle.ErrUnknownFlightMode),
		errors.Is(err, vehicle.ErrUnknownChannel):
		return http.StatusBadRequest
	case errors.Is(err, link.ErrNotConnected), errors.Is(err, vehicle.ErrLoopStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
