// Package httpfrontend is the HTTP ingress in front of a Coordinator: a
// bounded worker pool, an idle timeout, and a startup latch callers can
// block on before issuing traffic.
package httpfrontend

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/ambry-coordinator/internal/coordinator"
	"github.com/dreamware/ambry-coordinator/internal/metrics"
)

// Config bundles the tunables recognized under the server.* configuration
// keys.
type Config struct {
	HTTPPort           int
	SOBacklog          int
	BossThreadCount    int
	WorkerThreadCount  int
	IdleTimeSeconds    int
	StartupWaitSeconds int
}

// Server is the HTTP front door. One boss goroutine accepts connections per
// BossThreadCount (net/http multiplexes accepts internally, so this is
// informational rather than a literal goroutine-per-listener split); request
// handling is capped at WorkerThreadCount concurrent in-flight requests via
// a semaphore, the same bounding technique the connection pool uses to cap
// concurrent leases per replica.
type Server struct {
	cfg   Config
	coord *coordinator.Coordinator
	log   *logrus.Entry

	httpSrv *http.Server
	ready   chan struct{}
	sem     chan struct{}

	// draining is set once shutdown begins; handlers check it before
	// constructing a new Coordinator operation so in-flight work runs to its
	// natural deadline while new work is refused immediately.
	draining atomic.Bool
}

// NewServer builds a Server. It does not bind a listener; call Start for
// that.
func NewServer(coord *coordinator.Coordinator, cfg Config, log *logrus.Entry) *Server {
	if cfg.WorkerThreadCount <= 0 {
		cfg.WorkerThreadCount = 16
	}
	if cfg.IdleTimeSeconds <= 0 {
		cfg.IdleTimeSeconds = 60
	}

	s := &Server{
		cfg:   cfg,
		coord: coord,
		log:   log,
		ready: make(chan struct{}),
		sem:   make(chan struct{}, cfg.WorkerThreadCount),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/blobs/", s.handleBlob)

	s.httpSrv = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:     s.bounded(mux),
		IdleTimeout: time.Duration(cfg.IdleTimeSeconds) * time.Second,
	}
	return s
}

// bounded wraps h so that at most WorkerThreadCount requests execute their
// handler body concurrently; excess requests block in the queue rather than
// spawning unbounded goroutines, the same conservation guarantee the
// connection pool gives replica dials.
func (s *Server) bounded(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sem <- struct{}{}
		defer func() { <-s.sem }()
		h.ServeHTTP(w, r)
	})
}

// Start binds the listener and serves until the context is cancelled. It
// closes the Ready() channel as soon as the listener is bound; a bind
// failure is returned directly. StartupWaitSeconds is not applied here.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.httpSrv.Addr)
	if err != nil {
		metrics.StartupErrors.Inc()
		return fmt.Errorf("httpfrontend: listen %s: %w", s.httpSrv.Addr, err)
	}
	close(s.ready)
	s.log.WithFields(logrus.Fields{
		"addr":                s.httpSrv.Addr,
		"so_backlog":          s.cfg.SOBacklog,
		"boss_thread_count":   s.cfg.BossThreadCount,
		"worker_thread_count": s.cfg.WorkerThreadCount,
	}).Info("http frontend listening")

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpSrv.Serve(lis) }()

	select {
	case <-ctx.Done():
		return s.Shutdown(30 * time.Second)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		metrics.StartupErrors.Inc()
		return err
	}
}

// Ready returns a channel that is closed once Start has bound the listener.
// It is never closed if binding fails, and no StartupWaitSeconds deadline is
// applied to it.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Shutdown drains in-flight requests within budget, then forcibly closes
// any stragglers.
func (s *Server) Shutdown(budget time.Duration) error {
	s.draining.Store(true)
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.log.WithError(err).Error("http frontend did not drain within its shutdown budget")
		metrics.ShutdownErrors.Inc()
		_ = s.httpSrv.Close()
		return err
	}
	return nil
}
