// Package server implements the metacatalog HTTP surface
package server

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nainya/metacatalog/internal/logger"
	"github.com/nainya/metacatalog/internal/metrics"
	"github.com/nainya/metacatalog/pkg/catalog"
	"github.com/nainya/metacatalog/pkg/lifecycle"
)

// APIVersion prefixes every route.
const APIVersion = "/v3"

// Server binds the catalog service and lifecycle manager to HTTP routes
type Server struct {
	router    chi.Router
	catalog   *catalog.Service
	lifecycle *lifecycle.Manager
	log       *logger.Logger
	metrics   *metrics.Metrics
}

type Option func(*Server)

func WithLogger(log *logger.Logger) Option {
	return func(s *Server) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates the HTTP server and registers all routes
func New(svc *catalog.Service, lc *lifecycle.Manager, opts ...Option) *Server {
	s := &Server{
		catalog:   svc,
		lifecycle: lc,
		log:       logger.NewLogger(logger.Config{Level: "error", Output: io.Discard}),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	r.Route(APIVersion, s.routes)
	s.router = r
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// instrument logs and measures every request by its route pattern
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		if s.metrics != nil {
			s.metrics.HTTPRequestsInFlight.Inc()
			defer s.metrics.HTTPRequestsInFlight.Dec()
		}

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		duration := time.Since(start)
		s.log.LogHTTPRequest(r.Method, route, code, duration)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, route, code, duration)
		}
	})
}

// routePattern is the matched chi pattern. Unmatched requests share one
// label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
