package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/Sunnyio/attendanceManager/internal/config"
	"github.com/Sunnyio/attendanceManager/internal/web/handlers"
	"github.com/Sunnyio/attendanceManager/internal/web/middleware"
)

// Options configures the HTTP server.
type Options struct {
	Addr              string
	CORSOrigins       []string
	InsightsPerMinute float64
	Timeouts          config.TimeoutConfig
	Version           handlers.VersionInfo
}

// Server represents the web server
type Server struct {
	opts     Options
	router   *chi.Mux
	handlers *handlers.Handlers
}

func NewServer(opts Options, attendanceSvc handlers.AttendanceService, insightsSvc handlers.InsightsService) *Server {
	if opts.Timeouts.Request <= 0 || opts.Timeouts.Shutdown <= 0 {
		opts.Timeouts = config.DefaultTimeoutConfig()
	}

	s := &Server{
		opts:     opts,
		router:   chi.NewRouter(),
		handlers: handlers.New(attendanceSvc, insightsSvc, opts.Version),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router
	h := s.handlers

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.ProcessTime)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(s.opts.CORSOrigins))
	r.Use(chimiddleware.Timeout(s.opts.Timeouts.Request))

	r.Get("/health", h.Health)

	r.Route("/attendance", func(r chi.Router) {
		r.Post("/", h.AddAttendance)
		r.Put("/", h.UpdateAttendance)
		r.Get("/trends", h.AttendanceTrends)
		r.Get("/{employeeID}", h.EmployeeAttendance)
	})

	r.Route("/insights", func(r chi.Router) {
		r.Use(middleware.RateLimit(middleware.NewLimiter(s.opts.InsightsPerMinute)))
		r.Post("/", h.Insights)
	})
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.opts.Timeouts.ReadHeader,
		ReadTimeout:       15 * time.Second,
		// Handlers are bounded by the chi Timeout middleware; leave headroom for the response.
		WriteTimeout: s.opts.Timeouts.Request + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.opts.Addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.Timeouts.Shutdown)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
