package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neferdidi/boba-backend/api/controllers"
	"github.com/neferdidi/boba-backend/api/middleware"
	"github.com/neferdidi/boba-backend/pkg/config"
	"github.com/neferdidi/boba-backend/pkg/db"
	"github.com/neferdidi/boba-backend/pkg/logger"
	"github.com/neferdidi/boba-backend/pkg/redis"
)

// NewRouter wires the ordering API. Admin routes carry no authentication of
// their own and are expected to sit behind the operator gateway.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	cycleSvc controllers.CycleService,
	orderSvc controllers.OrderService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	// a nil *redis.Client must not reach the middleware as a non-nil interface
	var (
		cachePinger redis.Pinger
		limiter     redis.RateLimiter
		idemStore   redis.IdempotencyStore
	)
	if redisClient != nil {
		cachePinger = redisClient
		limiter = redisClient
		idemStore = redisClient
	}

	orderPolicy := middleware.NewRateLimitPolicy(
		"orders",
		cfg.HTTP.OrderRateWindow,
		cfg.HTTP.OrderRateLimit,
		cfg.HTTP.OrderRateLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cachePinger))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Post("/calculate-discount", controllers.PublicCalculateDiscount(cycleSvc, logg))
		r.Get("/cycle-discount", controllers.PublicCycleDiscount(cycleSvc, logg))
	})

	r.Route("/api/user/orders", func(r chi.Router) {
		r.With(
			middleware.RateLimit(orderPolicy, limiter, logg),
			middleware.Idempotency(idemStore, cfg.HTTP.IdempotencyTTL, logg),
		).Post("/", controllers.UserPlaceOrder(orderSvc, logg))
		r.Get("/", controllers.UserOrdersByPhone(orderSvc, logg))
		r.Get("/{orderId}", controllers.UserOrderDetail(orderSvc, logg))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Route("/ordering", func(r chi.Router) {
			r.Post("/open", controllers.AdminOpenOrdering(cycleSvc, logg))
			r.Post("/close", controllers.AdminCloseOrdering(cycleSvc, logg))
		})
		r.Route("/cycles", func(r chi.Router) {
			r.Get("/", controllers.AdminListCycles(cycleSvc, logg))
			// no idempotency replay: a repeated confirm must see cycle_already_confirmed
			r.Post("/{cycleId}/confirm", controllers.AdminConfirmCycle(cycleSvc, logg))
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(orderSvc, logg))
			r.Get("/statistics", controllers.AdminOrderStatistics(cycleSvc, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(orderSvc, logg))
			r.Put("/{orderId}/status", controllers.AdminUpdateOrderStatus(orderSvc, logg))
		})
	})

	return r
}
