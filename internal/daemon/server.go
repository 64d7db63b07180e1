// Package daemon serves the local HTTP API used by the browser extension
// and the CLI.
package daemon

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/runnerr0/focuslens/internal/config"
	"github.com/runnerr0/focuslens/internal/intervention"
	"github.com/runnerr0/focuslens/internal/monitor"
)

// Server is the focuslens daemon's HTTP front end.
type Server struct {
	mon     *monitor.Monitor
	sink    *intervention.PollSink
	cfg     config.DaemonConfig
	version string
	logger  hclog.Logger
}

// New creates a Server. sink is the mailbox the monitor delivers into.
func New(mon *monitor.Monitor, sink *intervention.PollSink, cfg config.DaemonConfig, version string, logger hclog.Logger) *Server {
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = 1 << 20
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{mon: mon, sink: sink, cfg: cfg, version: version, logger: logger}
}

// Addr returns host:port the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/status", s.handleStatus)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)

		r.Post("/visits", s.handleVisit)
		r.Post("/tabs/activate", s.handleTabActivate)
		r.Post("/tabs/heartbeat", s.handleTabHeartbeat)
		r.Post("/tabs/blur", s.handleTabBlur)

		r.Route("/stats", func(r chi.Router) {
			r.Get("/today", s.handleToday)
			r.Get("/daily/{date}", s.handleDaily)
			r.Get("/range", s.handleRange)
			r.Get("/weekly", s.handleWeekly)
			r.Get("/monthly", s.handleMonthly)
			r.Get("/streak", s.handleStreak)
			r.Get("/top", s.handleTop)
		})

		r.Get("/state", s.handleState)
		r.Post("/session/reset", s.handleSessionReset)

		r.Get("/interventions", s.handleListInterventions)
		r.Get("/interventions/pending", s.handlePending)
		r.Post("/interventions/{id}/outcome", s.handleOutcome)

		r.Get("/task", s.handleGetTask)
		r.Put("/task", s.handleSetTask)
		r.Delete("/task", s.handleClearTask)

		r.Get("/export", s.handleExport)
	})
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("daemon shutdown", "error", err)
		}
	}()

	s.logger.Info("daemon listening", "addr", server.Addr, "auth", s.cfg.AuthToken != "")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", server.Addr, err)
	}
	return nil
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	want := []byte("Bearer " + s.cfg.AuthToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := hclog.Debug
		if ww.Status() >= http.StatusInternalServerError {
			level = hclog.Warn
		}
		// Heartbeats arrive every few seconds.
		if strings.HasPrefix(r.URL.Path, "/tabs/") && level == hclog.Debug {
			level = hclog.Trace
		}
		s.logger.Log(level, "request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
