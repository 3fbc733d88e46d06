package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JonnyJiang123/smart-sql/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// accessLog writes one zerolog line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("query_id", ww.Header().Get(QueryIDHeader)).
			Msg("request")
	})
}

// recordMetrics records request counts and latency by route pattern.
func (s *Server) recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := s.collector.StartTimer(metrics.HTTPDurationSeconds)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := strconv.Itoa(ww.Status())

		s.collector.IncrementCounter(metrics.HTTPRequestsTotal, "method", r.Method, "route", route, "status", status)
		s.collector.RecordHistogram(metrics.HTTPDurationSeconds, timer.Stop(), "method", r.Method, "route", route)
	})
}
