package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pagofacil-pos/api/internal/cache"
	"github.com/pagofacil-pos/api/internal/config"
	"github.com/pagofacil-pos/api/internal/daykey"
	"github.com/pagofacil-pos/api/internal/enum"
	"github.com/pagofacil-pos/api/internal/handler"
	mw "github.com/pagofacil-pos/api/internal/middleware"
	"github.com/pagofacil-pos/api/internal/service"
	"github.com/pagofacil-pos/api/internal/store"
	"github.com/pagofacil-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up. Admin-only
// mutations share paths with the read endpoints and differ only by method
// plus the role middleware.
func New(cfg *config.Config, st store.Store, clock *daykey.Clock, reports cache.ReportCache, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Services
	userService := service.NewUserService(st, cfg.JWTSecret)
	productService := service.NewProductService(st)
	stockService := service.NewStockService(st, clock)
	saleService := service.NewSaleService(st, clock, reports)
	purchaseService := service.NewPurchaseService(st, clock)
	reportService := service.NewReportService(st, clock, reports)

	// Handlers
	authHandler := handler.NewAuthHandler(userService)
	userHandler := handler.NewUserHandler(userService)
	productHandler := handler.NewProductHandler(productService, stockService)
	saleHandler := handler.NewSaleHandler(saleService, hub)
	purchaseHandler := handler.NewPurchaseHandler(purchaseService)
	reportHandler := handler.NewReportHandler(reportService)

	requireAdmin := mw.RequireRole(enum.UserRoleAdmin)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		authHandler.RegisterRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			authHandler.RegisterProtectedRoutes(r)
		})
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/sales", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/users", func(r chi.Router) {
			userHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				userHandler.RegisterAdminRoutes(r)
			})
		})

		r.Route("/products", func(r chi.Router) {
			productHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				productHandler.RegisterAdminRoutes(r)
			})
		})

		r.Route("/sales", func(r chi.Router) {
			saleHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				saleHandler.RegisterAdminRoutes(r)
			})
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Use(requireAdmin)
			purchaseHandler.RegisterRoutes(r)
		})

		r.Route("/reports", reportHandler.RegisterRoutes)
	})

	return r
}
