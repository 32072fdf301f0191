package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

const shutdownTimeout = 10 * time.Second

// Server runs the HTTP surface until its context is cancelled. It satisfies
// controller-runtime's manager.Runnable, so it can run standalone or inside
// a manager next to the route sync controller.
type Server struct {
	listen  string
	handler http.Handler
	log     logr.Logger

	// ready is closed once the listener is bound; tests read the address.
	ready chan struct{}
	addr  net.Addr
}

func NewServer(addr string, handler http.Handler, log logr.Logger) *Server {
	return &Server{listen: addr, handler: handler, log: log, ready: make(chan struct{})}
}

// Start listens on the configured address and blocks until ctx is done, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.listen, err)
	}
	s.addr = ln.Addr()
	close(s.ready)

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving API", "addr", s.addr.String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NeedLeaderElection reports that every replica serves the API.
func (s *Server) NeedLeaderElection() bool { return false }

// ListenAddr blocks until the listener is bound and returns its address.
func (s *Server) ListenAddr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
		return s.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
