package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/herald/herald/internal/config"
	"github.com/herald/herald/internal/handler"
	"github.com/herald/herald/internal/middleware"
)

// New creates and configures the HTTP router
func New(h *handler.Handler, mw *middleware.Middleware, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (no auth required)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.Handler())
	}

	mux.HandleFunc("GET /api/v1/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Herald API v1","version":"` + handler.Version + `"}`))
	})

	// Campaign routes (API key when configured)
	api := mw.APIKey

	mux.Handle("POST /api/v1/campaigns", api(http.HandlerFunc(h.CreateCampaign)))
	mux.Handle("GET /api/v1/campaigns", api(http.HandlerFunc(h.ListCampaigns)))
	mux.Handle("GET /api/v1/campaigns/{id}", api(http.HandlerFunc(h.GetCampaign)))
	mux.Handle("GET /api/v1/campaigns/{id}/status", api(http.HandlerFunc(h.CampaignStatus)))
	mux.Handle("GET /api/v1/campaigns/{id}/recipients", api(http.HandlerFunc(h.CampaignRecipients)))
	mux.Handle("GET /api/v1/recipients/{id}/attempts", api(http.HandlerFunc(h.RecipientAttempts)))

	// Dispatch is rate limited per campaign
	dispatchRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Name:   "dispatch",
		Limit:  cfg.Security.RateLimiting.DispatchLimit,
		Window: cfg.Security.RateLimiting.DispatchWindow,
		KeyFn:  middleware.CampaignKey,
	})
	mux.Handle("POST /api/v1/campaigns/{id}/dispatch", api(dispatchRateLimit(http.HandlerFunc(h.DispatchCampaign))))

	// Apply middleware stack
	var handler http.Handler = mux

	// Metrics (innermost, reads the matched pattern)
	handler = mw.Metrics(handler)

	// CORS
	handler = mw.CORS(cfg.Server.AllowedOrigins)(handler)

	// Security headers
	handler = mw.SecurityHeaders(handler)

	// Request logging
	handler = mw.Logger(handler)

	// Request ID
	handler = mw.RequestID(handler)

	// Panic recovery (outermost)
	handler = mw.Recover(handler)

	return handler
}
