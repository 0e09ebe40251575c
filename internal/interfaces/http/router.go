// Package http exposes the prediction service over a chi router.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/AdsorpNET/internal/interfaces/http/handlers"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil handlers leave their routes unregistered; nil middleware is skipped.
type RouterConfig struct {
	PredictionHandler *handlers.PredictionHandler
	ModelHandler      *handlers.ModelHandler
	HealthHandler     *handlers.HealthHandler

	CORS      func(http.Handler) http.Handler
	Logging   func(http.Handler) http.Handler
	Metrics   func(http.Handler) http.Handler
	RateLimit func(http.Handler) http.Handler

	// MetricsHandler serves scrapes at MetricsPath ("/metrics" when empty).
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewRouter builds the route tree: global middleware, probes, the scrape
// endpoint and the /api/v1 resources.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	for _, mw := range []func(http.Handler) http.Handler{cfg.Metrics, cfg.CORS, cfg.Logging} {
		if mw != nil {
			r.Use(mw)
		}
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.RateLimit != nil {
			api.Use(cfg.RateLimit)
		}
		registerPredictionRoutes(api, cfg.PredictionHandler)
		registerModelRoutes(api, cfg.ModelHandler)
	})

	return r
}

func registerPredictionRoutes(r chi.Router, h *handlers.PredictionHandler) {
	if h == nil {
		return
	}
	r.Route("/predictions", func(pr chi.Router) {
		pr.Get("/", h.List)
		pr.Post("/", h.Predict)
		pr.Post("/batch", h.PredictBatch)
		pr.Get("/{id}", h.Get)
	})
}

func registerModelRoutes(r chi.Router, h *handlers.ModelHandler) {
	if h == nil {
		return
	}
	r.Route("/models", func(mr chi.Router) {
		mr.Get("/", h.List)
		mr.Post("/preload", h.Preload)
		mr.Post("/unload", h.Unload)
	})
	r.Get("/cache", h.CacheStats)
	r.Delete("/cache", h.ClearCache)
}
