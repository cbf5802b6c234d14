package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.observeRequests)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", s.metrics.Handler())
	r.Get("/api/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/import", s.handleImport)

		r.Route("/batches", func(r chi.Router) {
			r.Post("/", s.handleSubmit)
			r.Get("/", s.handleListBatches)
			r.Get("/current", s.handleCurrentBatch)

			r.Route("/{batchID}", func(r chi.Router) {
				r.Get("/", s.handleGetBatch)
				r.Delete("/", s.handleCancelBatch)
				r.Get("/results/{index}", s.handleGetResult)
				r.Get("/results/{index}/download", s.handleDownload)
			})
		})
	})

	return r
}
