package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/pesatrack/backend/internal/handlers"
	mW "github.com/pesatrack/backend/internal/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// newRouter wires middleware and routes. Access logging is done by mW.RequestLogger only.
func newRouter(appLog zerolog.Logger, smsHandler *handlers.SMSHandler, categoryHandler *handlers.CategoryHandler, health http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(mW.RequestLogger(appLog))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", health)

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/sms/parse", smsHandler.Parse)
			r.Post("/sms/import", smsHandler.Import)
			r.Get("/sms/sessions/{sessionId}", smsHandler.GetSession)
			r.Get("/sms/duplicates/stats", smsHandler.DuplicateStats)

			r.Get("/categories", categoryHandler.List)
			r.Post("/categories", categoryHandler.Create)
		})
	})

	return r
}

// healthHandler reports database and Redis reachability; rdb may be nil
func healthHandler(db *sql.DB, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "healthy", "database": "up", "redis": "disabled"}
		if err := db.PingContext(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = "down"
		}
		if rdb != nil {
			status["redis"] = "up"
			if err := rdb.Ping(r.Context()).Err(); err != nil {
				status["redis"] = "down"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	}
}
