package api

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"restaurant-saas/internal/config"
)

// Pinger is satisfied by the pgx pool and the redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterOptions configures the root router.
type RouterOptions struct {
	HandlerTimeout time.Duration
	// TrustedProxies are the peers whose forwarding headers name the client.
	TrustedProxies []netip.Prefix
	// Checks are pinged by /health; a failing check turns the response into 503.
	Checks map[string]Pinger
	// BeforeScrape runs before each /metrics response.
	BeforeScrape func()
}

// NewRouter builds the root router with the ambient middleware, /health and
// /metrics. mount registers the versioned API on it.
func NewRouter(opts RouterOptions, logger *zerolog.Logger, mount func(chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	r.Use(RealIP(opts.TrustedProxies))
	r.Use(TraceID(logger), RequestLog(logger), Recover(logger), Timeout(opts.HandlerTimeout))

	r.Get("/health", healthHandler(opts.Checks))
	r.Handle("/metrics", metricsHandler(opts.BeforeScrape))
	mount(r)
	return r
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{}
		code := http.StatusOK
		for name, c := range checks {
			if err := c.Ping(ctx); err != nil {
				status[name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		WriteJSON(w, code, map[string]any{"status": http.StatusText(code), "checks": status})
	}
}

func metricsHandler(before func()) http.Handler {
	h := promhttp.Handler()
	if before == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		before()
		h.ServeHTTP(w, r)
	})
}

// Server owns the listening http.Server.
type Server struct {
	server *http.Server
	log    *zerolog.Logger
}

func NewServer(cfg config.HTTPConfig, h http.Handler, logger *zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           h,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		log: logger,
	}
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
