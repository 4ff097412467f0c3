// Package server assembles the harrierd HTTP surface.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harrier-systems/harrierwatch/common/middleware"
	"github.com/harrier-systems/harrierwatch/internal/handlers"
)

// NewRouter constructs a ServeMux with engine API routes registered.
// CORS is applied only when origins are configured; the request-ID
// middleware always wraps the whole surface.
func NewRouter(h *handlers.Handler, cors middleware.CORSConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/sessions", h.Sessions)
	mux.HandleFunc("/api/v1/sessions/", h.SessionByClass)
	mux.HandleFunc("/api/v1/events/", h.Events)
	mux.HandleFunc("/api/v1/baseline/", h.Baseline)
	mux.HandleFunc("/api/v1/stats", h.Stats)
	mux.HandleFunc("/api/v1/interfaces", h.Interfaces)
	mux.HandleFunc("/api/v1/stream", h.Stream)
	mux.HandleFunc("/api/v1/stream/", h.Stream)

	mux.HandleFunc("/healthz", h.Health)
	mux.Handle("/metrics", promhttp.Handler())

	var root http.Handler = mux
	if len(cors.AllowedOrigins) > 0 {
		root = middleware.CORS(cors)(root)
	}
	return middleware.RequestID(root)
}
