package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mesa-pos/api/internal/actor"
	"github.com/mesa-pos/api/internal/bus"
	"github.com/mesa-pos/api/internal/config"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/handler"
	mw "github.com/mesa-pos/api/internal/middleware"
	"github.com/mesa-pos/api/internal/policy"
	"github.com/mesa-pos/api/internal/service"
)

// New creates a Chi router with all application routes wired up.
// Every protected route resolves the caller into an actor and a visibility
// scope; the services below never see a raw user ID.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, events *bus.Bus) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Resolvers shared by every protected route.
	actorResolver := actor.NewResolver(queries)
	scopeResolver := policy.NewResolver(queries)

	// Services
	tableService := service.NewTableService(queries, scopeResolver)
	orderService := service.NewOrderService(
		pool,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		queries,
		scopeResolver,
		events,
	)
	billingService := service.NewBillingService(
		pool,
		func(db database.DBTX) service.BillingStore { return database.New(db) },
		queries,
		scopeResolver,
	)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		staffHandler := handler.NewStaffHandler(queries, actorResolver)
		r.Route("/staff", func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleAdmin))
			staffHandler.RegisterRoutes(r)
		})

		tableHandler := handler.NewTableHandler(tableService, actorResolver)
		r.Route("/tables", tableHandler.RegisterRoutes)

		orderHandler := handler.NewOrderHandler(orderService, actorResolver)
		r.Route("/orders", orderHandler.RegisterRoutes)

		billingHandler := handler.NewBillingHandler(billingService, actorResolver)
		r.Route("/billing", billingHandler.RegisterRoutes)
	})

	log.Println("Router initialized with all handlers")
	return r
}
