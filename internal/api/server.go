package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/formpilot/formpilot/internal/ratelimit"
	"github.com/formpilot/formpilot/internal/stream"
)

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(streamServer *stream.Server, limiter *ratelimit.Limiter) *mux.Router {
	h.limiter = limiter

	r := mux.NewRouter()

	// API v1 routes
	api := r.PathPrefix("/v1").Subrouter()

	// Workflow-advancing endpoints (rate limited per session)
	limited := api.PathPrefix("").Subrouter()
	limited.Use(RateLimitMiddleware(limiter))

	limited.HandleFunc("/init", h.Init).Methods("POST", "OPTIONS")
	limited.HandleFunc("/execute", h.Execute).Methods("POST", "OPTIONS")
	limited.HandleFunc("/fill-form", h.FillForm).Methods("POST", "OPTIONS")
	limited.HandleFunc("/click", h.Click).Methods("POST", "OPTIONS")
	limited.HandleFunc("/submit", h.Submit).Methods("POST", "OPTIONS")
	limited.HandleFunc("/input", h.Input).Methods("POST", "OPTIONS")
	limited.HandleFunc("/analyze", h.Analyze).Methods("POST", "OPTIONS")
	limited.HandleFunc("/close", h.Close).Methods("POST", "OPTIONS")

	// Screenshot endpoint (not rate limited - frequent polling)
	api.HandleFunc("/screenshot", h.Screenshot).Methods("POST", "OPTIONS")

	// Event stream
	api.HandleFunc("/ws", streamServer.HandleConnection).Methods("GET")

	// Health check
	r.HandleFunc("/health", h.Health).Methods("GET")

	// CORS middleware
	r.Use(corsMiddleware)

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
