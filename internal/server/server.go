package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openlumen/keylightctl/internal/control"
	"github.com/openlumen/keylightctl/internal/logging"
)

const (
	// DefaultListenAddr binds to loopback only. The API has no
	// authentication; exposing it beyond the local machine would hand
	// over control of every light on the network.
	DefaultListenAddr = "127.0.0.1:9124"

	shutdownTimeout = 10 * time.Second
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr string
}

// Server is the local HTTP API over a device registry. It exposes the
// managed device list, read/write access to device state, and a
// WebSocket stream of availability events.
type Server struct {
	config   *Config
	registry *control.Registry

	httpServer *http.Server
	listener   net.Listener

	mu      sync.Mutex
	started bool
}

// New creates a server over the given registry.
func New(config *Config, registry *control.Registry) *Server {
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}

	s := &Server{
		config:   config,
		registry: registry,
	}
	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start binds the listener and serves until Shutdown is called or the
// listener fails. It blocks.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to bind API listener: %w", err)
	}
	s.listener = listener
	s.started = true
	s.mu.Unlock()

	logging.Info("API server listening",
		zap.String("addr", listener.Addr().String()),
	)

	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

// Addr returns the bound listen address, usable once Start has bound
// the listener. Handy when the configured port is 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.config.ListenAddr
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and drains in-flight requests.
// Open WebSocket streams are closed by the handler when its context
// ends.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server")

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logging.Warn("API server shutdown timed out, forcing close", zap.Error(err))
		return s.httpServer.Close()
	}
	return nil
}

// routes builds the API route table.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/devices", s.handleListDevices)
	mux.HandleFunc("GET /api/devices/{id}", s.handleGetDevice)
	mux.HandleFunc("GET /api/devices/{id}/state", s.handleGetState)
	mux.HandleFunc("PUT /api/devices/{id}/state", s.handlePutState)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	return s.logRequests(mux)
}

// logRequests wraps the route table with per-request logging.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, recorder.status)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrade take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
