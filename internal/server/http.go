package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultReadHeaderTimeout bounds reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds writing a response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the keep-alive idle timeout.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful server shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// httpService is an http.Server bound in two steps so callers learn the
// actual address before serving.
type httpService struct {
	name    string
	addr    string
	handler http.Handler

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// Listen binds the configured address.
func (s *httpService) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}
	return nil
}

// Start binds if needed and serves until Shutdown. It returns nil after a
// graceful shutdown.
func (s *httpService) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	srv, ln := s.srv, s.ln
	s.mu.Unlock()

	slog.Info("starting "+s.name, "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. It is a no-op before Listen.
func (s *httpService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	slog.Info("shutting down " + s.name)
	return srv.Shutdown(ctx)
}

// Addr returns the bound address, or the configured one before Listen.
func (s *httpService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}
