package handlers

import (
	"net/http"

	"meetup-backend/internal/config"
	"meetup-backend/internal/middleware"
	"meetup-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
)

// RouterDeps holds everything the HTTP layer needs. Redis may be nil,
// which disables rate limiting.
type RouterDeps struct {
	Config       *config.Config
	Redis        *redis.Client
	UserService  *services.UserService
	PlaceService *services.PlaceService
	QueueService *services.QueueService
	MatchService *services.MatchService
	Hub          *services.WSHub
}

// NewRouter wires handlers and middleware into a chi router
func NewRouter(d RouterDeps) http.Handler {
	authHandler := NewAuthHandler(d.UserService, d.Config.Server.SecureCookie)
	userHandler := NewUserHandler(d.UserService)
	placeHandler := NewPlaceHandler(d.PlaceService)
	queueHandler := NewQueueHandler(d.QueueService)
	matchHandler := NewMatchHandler(d.MatchService)
	wsHandler := NewWebSocketHandler(d.Hub, d.UserService)

	rdb := d.Redis
	if !d.Config.RateLimit.Enabled {
		rdb = nil
	}
	rl := d.Config.RateLimit

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.Server.AllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"RateLimit-Limit", "RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(rdb, rl.Prefix, "general", rl.General))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(rdb, rl.Prefix, "register", rl.Register)).
				Post("/register", authHandler.Register)
			r.With(middleware.FailureRateLimit(rdb, rl.Prefix, "login", rl.Login)).
				Post("/login", authHandler.Login)
			r.With(middleware.OptionalAuth(d.UserService)).Get("/me", authHandler.Me)
			r.Post("/logout", authHandler.Logout)
		})

		r.Get("/places", placeHandler.List)
		r.Get("/places/{place_id}", placeHandler.Get)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(d.UserService))

			r.Post("/places/{place_id}/image", placeHandler.UploadImage)

			r.Post("/queue", queueHandler.Join)
			r.Get("/queue/me", queueHandler.ListMine)
			r.Delete("/queue/{queue_id}", queueHandler.Withdraw)

			r.Post("/match/request", queueHandler.Join)
			r.Get("/match/me", matchHandler.ListMine)
			r.Get("/match/{match_id}", matchHandler.Get)
			r.Post("/match/{match_id}/agree", matchHandler.Agree)
			r.Get("/match/{match_id}/contact", matchHandler.Contact)

			r.Put("/users/me/push-token", userHandler.SetPushToken)
		})
	})

	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}
