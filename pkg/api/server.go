// Package api provides the management HTTP server: health probes, a
// status summary and the Prometheus scrape endpoint. It runs alongside
// the chat listener on its own port.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/0xkonsti/chatd/internal/logger"
	"github.com/0xkonsti/chatd/pkg/api/handlers"
)

// Server is the management HTTP server. It supports graceful shutdown
// and is safe to stop multiple times.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates a management server in a stopped state. Call Start to
// begin serving. The source may be nil, which degrades the readiness and
// status endpoints but keeps liveness working.
func NewServer(config Config, source handlers.StatusSource) *Server {
	config.applyDefaults()

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      NewRouter(source),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
	}
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// Returns nil on graceful shutdown and an error if the server fails to
// start or shutdown does not complete in time.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// The cancelled ctx would abort the shutdown immediately; use a
		// fresh timeout instead.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop shuts the server down gracefully. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is configured to listen on.
func (s *Server) Port() int {
	return s.config.Port
}
