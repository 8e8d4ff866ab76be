package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Maksim200738-droid/rockvpn/internal/http-server/handlers/admin"
	"github.com/Maksim200738-droid/rockvpn/internal/http-server/handlers/health"
	"github.com/Maksim200738-droid/rockvpn/internal/http-server/handlers/purchase"
	"github.com/Maksim200738-droid/rockvpn/internal/http-server/handlers/users"
	"github.com/Maksim200738-droid/rockvpn/internal/http-server/mware"
)

// Service все операции координатора, доступные через API.
type Service interface {
	users.Service
	purchase.Service
	admin.Service
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc Service, tokens mware.TokenParser,
	limiter *rate.Limiter, db health.Pinger) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mware.JWTMiddleware(tokens, logger))
		r.Use(mware.RateLimitMiddleware(limiter, logger))

		r.Post("/users", users.Register(logger, svc))
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/subscriptions", users.Subscriptions(logger, svc))
			r.Get("/subscriptions/active", users.Active(logger, svc))
			r.Get("/trial", users.Trial(logger, svc))
			r.Get("/eligibility", users.Eligibility(logger, svc))
			r.Post("/trial", purchase.ClaimTrial(logger, svc))
			r.Post("/transactions", purchase.CreatePending(logger, svc))
			r.Post("/proof", purchase.SubmitProof(logger, svc))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(mware.RequireAdmin(logger))
			r.Get("/transactions/{id}", admin.Transaction(logger, svc))
			r.Post("/transactions/{id}/approve", admin.Approve(logger, svc))
			r.Post("/transactions/{id}/reject", admin.Reject(logger, svc))
			r.Get("/subscriptions", admin.ActiveSubscriptions(logger, svc))
			r.Delete("/subscriptions/{id}", admin.Revoke(logger, svc))
			r.Post("/users/{id}/grant", admin.Grant(logger, svc))
			r.Post("/users/{id}/debit", admin.Debit(logger, svc))
			r.Put("/users/{id}/admin", admin.SetAdmin(logger, svc))
			r.Get("/stats", admin.Stats(logger, svc))
		})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/health", health.New(logger, db))
}
