package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flashmart/flashmart-backend/api/controllers"
	"github.com/flashmart/flashmart-backend/api/middleware"
	adminsvc "github.com/flashmart/flashmart-backend/internal/admin"
	"github.com/flashmart/flashmart-backend/internal/holds"
	productsvc "github.com/flashmart/flashmart-backend/internal/products"
	"github.com/flashmart/flashmart-backend/pkg/config"
	"github.com/flashmart/flashmart-backend/pkg/db"
	"github.com/flashmart/flashmart-backend/pkg/logger"
	"github.com/flashmart/flashmart-backend/pkg/redis"
)

// NewRouter assembles the HTTP surface of the hold engine.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger db.Pinger,
	redisClient *redis.Client,
	holdService holds.Service,
	productService productsvc.Service,
	adminService adminsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisClient))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/holds", controllers.CreateHold(holdService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(holdService, logg))
			r.Get("/{id}", controllers.GetOrder(holdService, logg))
			r.Post("/{id}/confirm", controllers.ConfirmOrder(holdService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/live", controllers.ListLiveProducts(productService, logg))
			r.Get("/{id}", controllers.GetProduct(productService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/metrics", controllers.AdminMetrics(adminService, logg))
		})
	})

	return r
}
