package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.accessLog,
		s.recordMetrics,
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/query", func(r chi.Router) {
			r.Post("/execute", s.handleExecute)
			r.Post("/explain", s.handleExplain)
			r.Post("/batch", s.handleBatch)
			r.Post("/{id}/cancel", s.handleCancel)
		})

		r.Route("/connections", func(r chi.Router) {
			r.Get("/", s.handleListConnections)
			r.Post("/", s.handleSaveConnection)
			r.Post("/test", s.handleTestConnection)
			r.Get("/{id}", s.handleGetConnection)
			r.Put("/{id}", s.handleUpdateConnection)
			r.Delete("/{id}", s.handleDeleteConnection)
			r.Post("/{id}/toggle", s.handleToggleConnection)
			r.Get("/{id}/tables", s.handleListTables)
			r.Get("/{id}/tables/{table}", s.handleTableSchema)
			r.Get("/{id}/tables/{table}/indexes", s.handleIndexes)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleHistory)
			r.Post("/{id}/favorite", s.handleToggleFavorite)
			r.Delete("/clear", s.handleClearHistory)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Code: "INVALID_REQUEST", Message: "method not allowed"})
	})

	return r
}
