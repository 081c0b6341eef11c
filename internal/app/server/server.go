package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brattlof/roster/internal/app/router"
)

const defaultTimeout = 60 * time.Second

type Server struct {
	routes   *router.Table
	mux      *chi.Mux
	logger   *slog.Logger
	timeout  time.Duration
	notFound http.HandlerFunc
}

type Option func(*Server)

// WithTimeout bounds every non-streaming request.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithNotFound replaces the default JSON 404.
func WithNotFound(h http.HandlerFunc) Option {
	return func(s *Server) { s.notFound = h }
}

func New(routes *router.Table, opts ...Option) *Server {
	s := &Server{
		routes:  routes,
		mux:     chi.NewRouter(),
		logger:  slog.Default(),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetupMiddlewares installs the fixed chain followed by the middleware in
// extra, in priority order.
func (s *Server) SetupMiddlewares(extra interface {
	Apply(use func(func(http.Handler) http.Handler))
}) {
	s.mux.Use(middleware.RequestID)
	s.mux.Use(middleware.RealIP)
	s.mux.Use(s.requestLogger)
	s.mux.Use(middleware.Recoverer)

	if extra != nil {
		extra.Apply(func(fn func(http.Handler) http.Handler) { s.mux.Use(fn) })
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// SetupRoutes mounts the route table. Streaming routes are left out of the
// request timeout.
func (s *Server) SetupRoutes() {
	timed := s.mux.With(middleware.Timeout(s.timeout))
	s.routes.Mount(timed, router.RouteTypePage, router.RouteTypeAction, router.RouteTypeAPI)
	s.routes.Mount(s.mux, router.RouteTypeStream)

	if _, ok := s.routes.Lookup(http.MethodGet, "/health"); !ok {
		s.mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	if s.notFound != nil {
		s.mux.NotFound(s.notFound)
		return
	}
	s.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})
}

func (s *Server) Handler() http.Handler {
	return s.mux
}
