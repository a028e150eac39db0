package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/orderstock-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/orderstock-backend/api/controllers/orders"
	stockcontrollers "github.com/angelmondragon/orderstock-backend/api/controllers/stock"
	"github.com/angelmondragon/orderstock-backend/api/middleware"
	"github.com/angelmondragon/orderstock-backend/internal/orders"
	"github.com/angelmondragon/orderstock-backend/pkg/config"
	"github.com/angelmondragon/orderstock-backend/pkg/enums"
	"github.com/angelmondragon/orderstock-backend/pkg/logger"
	"github.com/angelmondragon/orderstock-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/orderstock-backend/pkg/redis"
	"github.com/angelmondragon/orderstock-backend/pkg/retry"
)

// Dependencies groups what the router hands to middleware and controllers.
// Nil stores disable the middleware that needs them.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	RateLimiter middleware.RateLimiterStore
	Orders      orders.Service
	Stock       stockcontrollers.CategoryAdjuster
	HTTPMetrics *metrics.HTTPMetrics
	// MetricsHandler serves the Prometheus scrape endpoint when set.
	MetricsHandler http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Tracing(),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.HTTP.AllowedOrigins()),
	)

	retryPolicy := retry.Policy{
		Attempts: cfg.Orders.RetryAttempts,
		Backoff:  cfg.Orders.RetryBackoff,
	}
	apiPolicy := middleware.NewRateLimitPolicy("api", cfg.HTTP.RateLimitWindow, cfg.HTTP.RateLimitRequests)

	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["database"] = deps.DB
	}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(apiPolicy, deps.RateLimiter, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(deps.Orders, retryPolicy, logg))
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/by-number/{orderNumber}", ordercontrollers.DetailByNumber(deps.Orders, logg))
			r.Post("/by-number/{orderNumber}/return", ordercontrollers.Return(deps.Orders, retryPolicy, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.Post("/{orderId}/status", ordercontrollers.AdvanceStatus(deps.Orders, retryPolicy, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, retryPolicy, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
			r.Put("/v1/categories/{categoryId}/stock", stockcontrollers.AdjustCategory(deps.Stock, retryPolicy, logg))
		})
	})

	return r
}
