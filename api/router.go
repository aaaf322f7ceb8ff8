// Package api is the local HTTP bridge: JSON endpoints for the catalog, the
// configuration and plugin operations, plus a websocket event stream.
package api

import (
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/marketplace/catalog"
	"github.com/GoCodeAlone/marketplace/observability"
	"github.com/GoCodeAlone/marketplace/observability/tracing"
)

// Config holds configuration for the API layer.
type Config struct {
	// OpRateLimit is the maximum number of plugin operations per minute per
	// IP. Defaults to 30 when zero.
	OpRateLimit int
}

// Deps groups what the router serves.
type Deps struct {
	Service Service
	Catalog *catalog.Controller
	History History                // optional
	Hub     *Hub                   // optional, enables /api/v1/events
	Metrics *observability.Metrics // optional, enables /metrics
	Logger  *slog.Logger
}

// Router is the bridge handler. Call Stop when done to release the
// rate limiter.
type Router struct {
	http.Handler
	mw *Middleware
}

// Stop releases background resources.
func (r *Router) Stop() { r.mw.Stop() }

// NewRouter creates an http.Handler with all API v1 routes registered.
func NewRouter(deps Deps, cfg Config) *Router {
	mux := http.NewServeMux()
	mw := NewMiddleware(deps.Logger)
	h := NewHandler(deps.Service, deps.Catalog, deps.History, deps.Logger)
	opRL := mw.RateLimit(cfg.OpRateLimit)

	// --- Catalog ---
	mux.HandleFunc("GET /api/v1/catalog", h.Catalog)
	mux.HandleFunc("GET /api/v1/catalog/{slug}", h.Item)
	mux.HandleFunc("POST /api/v1/catalog/refresh", h.Refresh)
	mux.HandleFunc("PUT /api/v1/catalog/view", h.View)

	// --- Config ---
	mux.HandleFunc("GET /api/v1/config", h.GetConfig)
	mux.HandleFunc("PUT /api/v1/config", h.SetConfig)

	// --- Plugins ---
	mux.Handle("POST /api/v1/plugins/{slug}/{op}", opRL(http.HandlerFunc(h.Operate)))
	mux.HandleFunc("GET /api/v1/history", h.History)

	// --- Host ---
	mux.HandleFunc("GET /api/v1/online", h.Online)
	mux.HandleFunc("POST /api/v1/open", h.Open)
	mux.Handle("POST /api/v1/restart", opRL(http.HandlerFunc(h.Restart)))

	if deps.Hub != nil {
		mux.Handle("GET /api/v1/events", deps.Hub)
	}
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	return &Router{Handler: tracing.SpanMiddleware(mw.Logging(mux)), mw: mw}
}
