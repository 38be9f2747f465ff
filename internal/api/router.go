// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andygivens/orbit/internal/auth"
	"github.com/andygivens/orbit/internal/config"
	"github.com/andygivens/orbit/internal/metrics"
	"github.com/andygivens/orbit/internal/middleware"
)

// Rate limit tiers. Health probes poll frequently; login attempts are
// throttled hard against brute force.
var (
	rateLimitHealth = rateLimitConfig{Requests: 1000, Window: time.Minute}
	rateLimitLogin  = rateLimitConfig{Requests: 5, Window: 5 * time.Minute}
)

type rateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Router assembles the HTTP handler tree.
type Router struct {
	cfg      *config.Config
	handlers *Handlers
	authMW   *auth.Middleware
}

// NewRouter creates the router.
func NewRouter(cfg *config.Config, handlers *Handlers, authMW *auth.Middleware) *Router {
	return &Router{cfg: cfg, handlers: handlers, authMW: authMW}
}

// Setup wires all routes and middleware.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.rateLimit(rateLimitHealth, "health"))
		r.Get("/", router.handlers.Health)
		r.Get("/live", router.handlers.HealthLive)
		r.Get("/ready", router.handlers.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(router.rateLimit(rateLimitLogin, "login"))
		r.Post("/login", router.handlers.Login)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.rateLimit(rateLimitConfig{
			Requests: router.cfg.Security.RateLimitReqs,
			Window:   router.cfg.Security.RateLimitWindow,
		}, "api"))
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authMW.Authenticate)

		r.Route("/troubleshoot", func(r chi.Router) {
			r.Get("/groups", router.handlers.Groups)
			r.Post("/refresh", router.handlers.Refresh)
			r.Post("/link", router.handlers.Link)
			r.Post("/unlink", router.handlers.Unlink)
			r.Post("/confirm", router.handlers.Confirm)
			r.Post("/recreate", router.handlers.Recreate)
		})

		r.Get("/operations", router.handlers.Operations)
		r.Get("/operations/{id}", router.handlers.Operation)
		r.Get("/providers", router.handlers.Providers)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// rateLimit builds an IP-keyed limiter for a route group. Rejections
// increment the rate limit metric for the group.
func (router *Router) rateLimit(cfg rateLimitConfig, endpoint string) func(http.Handler) http.Handler {
	if router.cfg.Security.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(endpoint).Inc()
			respondError(w, http.StatusTooManyRequests, errCodeRateLimited,
				"Rate limit exceeded", nil)
		}),
	)
}
