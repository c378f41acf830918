package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/warehouse-backend/api/controllers"
	"github.com/angelmondragon/warehouse-backend/api/middleware"
	"github.com/angelmondragon/warehouse-backend/internal/audit"
	"github.com/angelmondragon/warehouse-backend/internal/lots"
	"github.com/angelmondragon/warehouse-backend/internal/movements"
	products "github.com/angelmondragon/warehouse-backend/internal/products"
	"github.com/angelmondragon/warehouse-backend/internal/shrinkage"
	"github.com/angelmondragon/warehouse-backend/pkg/config"
	"github.com/angelmondragon/warehouse-backend/pkg/db"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/warehouse-backend/pkg/redis"
)

// RedisStore is the Redis surface the HTTP layer needs. A nil store
// disables idempotency replay and write throttling.
type RedisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type requestObserver interface {
	Observe(route, method string, status int, elapsed time.Duration)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	httpMetrics requestObserver,
	metricsHandler http.Handler,
	movementService movements.Service,
	shrinkageService shrinkage.Service,
	lotService lots.Service,
	auditService audit.Service,
	productService products.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.API.CORSOrigins),
	)

	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["database"] = dbP
	}
	if redisStore != nil {
		readiness["redis"] = redisStore
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Handle("/metrics", metricsHandler)

	writePolicy := middleware.NewRateLimitPolicy("writes", cfg.API.WriteRateWindow, cfg.API.WriteRateLimit)

	var idempotencyStore pkgredis.IdempotencyStore
	if redisStore != nil {
		idempotencyStore = redisStore
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if redisStore != nil {
			r.Use(middleware.WriteRateLimit(writePolicy, redisStore, logg))
		}
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/v1", func(r chi.Router) {
			r.Route("/inflows", func(r chi.Router) {
				r.Post("/", controllers.RecordInflow(movementService, logg))
				r.Get("/{id}", controllers.GetInflow(movementService, logg))
			})
			r.Route("/outflows", func(r chi.Router) {
				r.Post("/", controllers.RecordOutflow(movementService, logg))
				r.Get("/{id}", controllers.GetOutflow(movementService, logg))
			})
			r.Route("/shrinkage", func(r chi.Router) {
				r.Post("/", controllers.SubmitShrinkage(shrinkageService, logg))
				r.Get("/pending", controllers.ListPendingShrinkage(shrinkageService, logg))
				r.Get("/{id}", controllers.GetShrinkage(shrinkageService, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, enums.MemberRoleSupervisor))
					r.Post("/{id}/approve", controllers.ApproveShrinkage(shrinkageService, logg))
					r.Post("/{id}/reject", controllers.RejectShrinkage(shrinkageService, logg))
				})
			})
			r.Get("/lots/{id}", controllers.GetLot(lotService, logg))
			r.Route("/audit", func(r chi.Router) {
				r.Get("/movements", controllers.AuditMovements(auditService, logg))
				r.Get("/products/{productId}/movements", controllers.AuditProductMovements(auditService, logg))
			})
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.MemberRoleAdmin))
			r.Delete("/inflows/{id}", controllers.AdminReverseInflow(movementService, logg))
			r.Delete("/outflows/{id}", controllers.AdminReverseOutflow(movementService, logg))
			r.Delete("/shrinkage/{id}", controllers.AdminReverseShrinkage(shrinkageService, logg))
			r.Post("/products", controllers.AdminCreateProduct(productService, logg))
			r.Patch("/products/{id}", controllers.AdminUpdateProduct(productService, logg))
			r.Delete("/products/{id}", controllers.AdminDeleteProduct(productService, logg))
			r.Put("/minimum-stock", controllers.AdminSetMinimumStock(productService, logg))
		})
	})

	return r
}
