// Package api exposes batches over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"scrape-gate/pkg/metrics"
	"scrape-gate/pkg/pipeline"
	"scrape-gate/pkg/session"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	addr       string
	router     http.Handler
	httpServer *http.Server

	store   *session.Store
	manager *session.Manager
	proc    *pipeline.Processor
	metrics *metrics.Metrics
	log     *logrus.Entry

	// batches outlive the request that created them
	baseCtx context.Context
}

// NewServer wires the router. Batches started through the API derive their
// context from baseCtx, so cancelling it stops them all.
func NewServer(baseCtx context.Context, addr string, store *session.Store, manager *session.Manager, proc *pipeline.Processor, m *metrics.Metrics, log *logrus.Entry) *Server {
	s := &Server{
		addr:    addr,
		store:   store,
		manager: manager,
		proc:    proc,
		metrics: m,
		log:     log,
		baseCtx: baseCtx,
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.log.Infof("HTTP API listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
