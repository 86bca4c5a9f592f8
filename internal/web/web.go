// Package web exposes agendas, expanded occurrences and refresh history over
// HTTP.
package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"calrecur/internal/agenda"
	"calrecur/internal/config"
	appLog "calrecur/internal/log"
	"calrecur/internal/model"
	"calrecur/internal/notify"
)

const (
	apiTimeout      = 60 * time.Second
	shutdownTimeout = 10 * time.Second
	slowRequest     = 2 * time.Second
)

// History lists past refresh runs.
type History interface {
	RecentRuns(ctx context.Context, limit int) ([]model.Run, error)
}

// Server provides the HTTP API over an agenda.Service.
type Server struct {
	cfg     *config.Config
	svc     *agenda.Service
	history History
	hub     *notify.Hub
	router  chi.Router

	now func() time.Time
}

// NewServer wires the routes. history and hub may be nil, in which case
// /api/runs and /ws are not served.
func NewServer(cfg *config.Config, svc *agenda.Service, history History, hub *notify.Hub) *Server {
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		history: history,
		hub:     hub,
		now:     time.Now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.RequestID, chimw.Recoverer, accessLog(slowRequest))
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(corsHandler(s.cfg.CORSOrigins))
	}

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			r.Use(basicAuth(s.cfg.BasicAuth.Username, s.cfg.BasicAuth.Password))
		}

		r.Route("/api", func(r chi.Router) {
			r.Use(chimw.Timeout(apiTimeout), chimw.NoCache)
			r.Get("/agenda", s.handleAgenda)
			r.Get("/calendars", s.handleCalendars)
			r.Get("/events", s.handleEvents)
			r.Post("/refresh", s.handleRefresh)
			if s.history != nil {
				r.Get("/runs", s.handleRuns)
			}
		})

		if s.hub != nil {
			r.Get("/ws", notify.Handler(s.hub, originHosts(s.cfg.CORSOrigins)...))
		}
	})
	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("http listening", "listen", "http://"+s.cfg.Listen, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	appLog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// originHosts turns configured origins such as "https://app.example.com"
// into the host patterns the WebSocket handshake matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}
