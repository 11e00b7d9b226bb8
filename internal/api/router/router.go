package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/chatrisk/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/chatrisk/internal/http/middleware"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ReviewHandler      *handlers.ReviewHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// ReviewRateLimit caps review writes per client per second; 0 disables it.
	ReviewRateLimit float64
	ReviewRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", cfg.ReviewHandler.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/meta", cfg.ReviewHandler.Meta)
		api.Get("/sessions", cfg.ReviewHandler.Sessions)
		api.Get("/review/audit", cfg.ReviewHandler.AuditEvents)
		api.With(httpmiddleware.RateLimit(cfg.ReviewRateLimit, cfg.ReviewRateBurst)).
			Post("/review", cfg.ReviewHandler.Review)
	})

	return r
}
