/**
 * @description
 * This file sets up the HTTP router for the banking API. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * the middleware stack: request ids, structured request logging, panic
 * recovery, timeouts, CORS, metrics, and JWT authentication on protected
 * groups.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 * - github.com/prometheus/client_golang/prometheus/promhttp: Metrics endpoint.
 */

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mannykwaning/banking-app/internal/config"
	"github.com/mannykwaning/banking-app/internal/observability"
)

// Routes creates and returns the router for the banking API.
func Routes(h *Handlers, cfg config.Config, logger *zap.Logger, metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for request ids, logging, panic recovery, and timeouts.
	r.Use(middleware.RequestID)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(MetricsMiddleware(metrics))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints.
		r.Post("/auth/register", h.RegisterHandler)
		r.Post("/auth/login", h.LoginHandler)

		// Group routes that require authentication.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.JWTSecret))

			r.Get("/auth/me", h.MeHandler)

			r.Route("/accounts", func(r chi.Router) {
				r.Post("/", h.CreateAccountHandler)
				r.Get("/", h.ListAccountsHandler)
				r.Get("/{accountID}", h.GetAccountHandler)
				r.Put("/{accountID}", h.UpdateAccountHandler)
				r.Delete("/{accountID}", h.DeleteAccountHandler)
				r.Get("/{accountID}/balance", h.GetBalanceHandler)
				r.Get("/{accountID}/transactions", h.GetStatementHandler)
				r.Get("/{accountID}/cards", h.ListCardsHandler)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Post("/deposit", h.DepositHandler)
				r.Post("/withdraw", h.WithdrawHandler)
				r.Get("/{entryID}", h.GetEntryHandler)
			})

			r.Route("/transfers", func(r chi.Router) {
				r.Post("/internal", h.InternalTransferHandler)
				r.Post("/external", h.ExternalTransferHandler)
				r.Get("/{referenceID}", h.GetTransferHandler)
			})

			r.Route("/cards", func(r chi.Router) {
				r.Post("/", h.IssueCardHandler)
				r.Get("/{cardID}", h.GetCardHandler)
				r.Patch("/{cardID}/status", h.UpdateCardStatusHandler)
			})

			// Admin-only error report.
			r.Route("/admin/errors", func(r chi.Router) {
				r.Use(AdminOnly)
				r.Get("/", h.ListErrorLogsHandler)
				r.Get("/recent", h.RecentErrorLogsHandler)
				r.Get("/summary", h.SummarizeErrorLogsHandler)
				r.Get("/{errorID}", h.GetErrorLogHandler)
			})
		})
	})

	return r
}
