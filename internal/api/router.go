package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/chat-auth-be/internal/api/handlers"
	"github.com/isdelr/chat-auth-be/internal/auth"
	"github.com/isdelr/chat-auth-be/internal/metrics"
	"github.com/isdelr/chat-auth-be/internal/services"
	"github.com/isdelr/chat-auth-be/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the dependencies of the HTTP surface.
type RouterConfig struct {
	AllowedOrigin string
	AuthService   services.AuthServiceProvider
	Tokens        *auth.TokenIssuer
	Hub           *websocket.Hub
	HealthChecks  map[string]handlers.HealthCheck
}

// NewRouter creates and configures a new Chi router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// The web client sends the session cookie cross-site.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)

	r.Get("/health", healthHandler.Serve)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Get("/check-auth", authHandler.CheckAuth)
		r.Get("/isverified", authHandler.IsVerified)
		r.Get("/verify-email/{token}", authHandler.VerifyEmail)

		if cfg.Hub != nil {
			eventsHandler := handlers.NewVerificationEventsHandler(cfg.Hub, cfg.AllowedOrigin)
			r.Get("/verification-events", eventsHandler.Serve)
		}

		// Routes behind the session cookie
		r.Group(func(r chi.Router) {
			r.Use(cfg.Tokens.RequireSession)
			r.Get("/user-info", authHandler.UserInfo)
			r.Post("/change-password", authHandler.ChangePassword)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})

	return r
}
