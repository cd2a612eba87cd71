package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/randgate/backend/internal/domain"
	"github.com/randgate/backend/internal/handler"
	"github.com/randgate/backend/internal/metrics"
	appMiddleware "github.com/randgate/backend/internal/middleware"
	"go.uber.org/zap"
)

type routerDeps struct {
	log         *zap.Logger
	corsOrigins []string
	limiter     *appMiddleware.RateLimiter
	verifier    appMiddleware.TokenVerifier
	ipn         *handler.IPNHandler
	health      *handler.HealthHandler
	admin       *handler.AdminHandler
	// telegram is nil in polling mode.
	telegram http.Handler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery(d.log))
	r.Use(appMiddleware.Logger(d.log))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		handler.Error(w, domain.ErrNotFound("not found"))
	})

	r.Get("/health", d.health.Check)
	r.Handle("/metrics", metrics.Handler())

	// Public routes hit by the processor, Telegram and payers
	r.Group(func(r chi.Router) {
		r.Use(d.limiter.Middleware())
		r.Get("/", handler.Index)
		r.Get("/success", handler.PaymentSuccess)
		r.Get("/cancel", handler.PaymentCancel)
		r.Post("/faucetpay_ipn", d.ipn.Receive)
		if d.telegram != nil {
			r.Post("/telegram/webhook", d.telegram.ServeHTTP)
		}
	})

	// Admin API. Mounted as a subrouter so CORS sees preflight requests.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.corsOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(d.limiter.Middleware())
		r.Use(appMiddleware.Auth(d.verifier))
		r.Use(appMiddleware.AdminOnly)
		r.Get("/entitlements/{userID}", d.admin.GetEntitlement)
		r.Get("/stats", d.admin.GetStats)
	})

	return r
}
