package subscriptionbot

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	// Регистрирует спецификацию OpenAPI для /docs.
	_ "github.com/magabrotheeeer/subscription-bot/internal/http/docs"

	"github.com/magabrotheeeer/subscription-bot/internal/http/handlers/admin/decision"
	"github.com/magabrotheeeer/subscription-bot/internal/http/handlers/admin/panel"
	"github.com/magabrotheeeer/subscription-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-bot/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-bot/internal/services/moderation"
)

// adminRate и adminBurst ограничивают запросы к API администратора.
const (
	adminRate  = 5
	adminBurst = 10
)

// RegisterRoutes регистрирует все маршруты HTTP-сервера бота.
func RegisterRoutes(
	r chi.Router,
	logger *slog.Logger,
	adminID string,
	parser middlewarectx.TokenParser,
	moderationService *moderation.Service,
	checks map[string]health.Pinger,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/health", health.New(logger, checks).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middlewarectx.JWTMiddleware(parser, adminID, logger))
		r.Use(middlewarectx.RateLimitMiddleware(rate.NewLimiter(adminRate, adminBurst), logger))
		r.Get("/panel", panel.New(logger, moderationService).ServeHTTP)
		r.Post("/decisions", decision.New(logger, moderationService).ServeHTTP)
	})
}
