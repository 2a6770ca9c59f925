package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bidmaster/bidmaster/internal/api/admin"
	"github.com/bidmaster/bidmaster/internal/api/auth"
	"github.com/bidmaster/bidmaster/internal/api/notifications"
	"github.com/bidmaster/bidmaster/internal/api/products"
)

// Config carries the handler set and middleware the router wires together.
type Config struct {
	AuthHandler         auth.Handler
	ProductHandler      products.Handler
	AdminHandler        admin.Handler
	NotificationHandler notifications.Handler
	Authenticate        func(http.Handler) http.Handler
	RequireSeller       func(http.Handler) http.Handler
	RequireAdmin        func(http.Handler) http.Handler
}

// SetupRouter builds the full route tree. Server-wide middleware (request ID,
// logging, recoverer) is applied in main before mounting this router.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// Public routes.
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/send-otp", cfg.AuthHandler.SendOTP)
			r.Post("/auth/verify-otp", cfg.AuthHandler.VerifyOTP)
			r.Post("/auth/external-login", cfg.AuthHandler.ExternalLogin)
			r.Post("/admin/login", cfg.AuthHandler.AdminLogin)

			r.Get("/products", cfg.ProductHandler.ListProducts)
			r.Get("/products/{id}", cfg.ProductHandler.GetProduct)
			r.Get("/categories", cfg.ProductHandler.ListCategories)
		})

		// Authenticated routes.
		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticate)

			r.Get("/auth/profile", cfg.AuthHandler.GetProfile)
			r.Patch("/auth/profile", cfg.AuthHandler.UpdateProfile)

			r.Post("/products/{id}/bid", cfg.ProductHandler.PlaceBid)

			r.Get("/notifications", cfg.NotificationHandler.ListNotifications)
			r.Patch("/notifications/read/{id}", cfg.NotificationHandler.MarkRead)
			r.Post("/notifications/token", cfg.NotificationHandler.SavePushToken)

			// Seller routes.
			r.Group(func(r chi.Router) {
				r.Use(cfg.RequireSeller)
				r.Post("/products", cfg.ProductHandler.CreateProduct)
				r.Get("/products/mine", cfg.ProductHandler.ListMyProducts)
			})

			// Admin routes.
			r.Route("/admin", func(r chi.Router) {
				r.Use(cfg.RequireAdmin)
				r.Get("/dashboard", cfg.AdminHandler.Dashboard)
				r.Get("/users", cfg.AdminHandler.ListUsers)
				r.Patch("/users/{id}/approve", cfg.AdminHandler.ApproveUser)
				r.Patch("/users/{id}/block", cfg.AdminHandler.BlockUser)
				r.Delete("/users/{id}", cfg.AdminHandler.DeleteUser)
				r.Get("/products/pending", cfg.AdminHandler.ListPendingProducts)
				r.Patch("/products/{id}/approve", cfg.AdminHandler.ApproveProduct)
				r.Patch("/products/{id}/reject", cfg.AdminHandler.RejectProduct)
			})
		})
	})

	return r
}
