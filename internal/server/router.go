package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/chat-gateway/internal/config"
	"github.com/capitalize-ai/chat-gateway/internal/handler"
	"github.com/capitalize-ai/chat-gateway/internal/middleware"
)

// NewRouter builds the HTTP routes.
func NewRouter(cfg *config.Config, deps *Dependencies) http.Handler {
	chatHandler := handler.NewChatHandler(deps.Chat, deps.Logger)
	wsHandler := handler.NewWebSocketHandler(chatHandler, cfg.CORSAllowedOrigins)
	healthHandler := handler.NewHealthHandler(cfg.AppVersion,
		handler.Check{Name: "llm", Probe: func(context.Context) error {
			if deps.Provider == nil {
				return errors.New("provider not initialized")
			}
			return nil
		}},
		handler.Check{Name: "repository", Probe: deps.Conversations.Ping},
	)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/health/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route(cfg.APIPrefix+"/chat", func(r chi.Router) {
		r.Get("/health", chatHandler.Health)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(middleware.AuthConfig{
				Secret:   cfg.JWTSecret,
				Required: cfg.AuthRequired,
			}))
			if cfg.RateLimitRequests > 0 {
				r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			}

			r.Post("/message", chatHandler.SendMessage)
			r.Post("/message/stream", chatHandler.StreamMessage)
			r.Get("/ws", wsHandler.Stream)
		})
	})

	return r
}

// New creates the HTTP server.
func New(cfg *config.Config, deps *Dependencies) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      NewRouter(cfg, deps),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
}
