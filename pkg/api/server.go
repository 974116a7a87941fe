// Package api serves the research API: cached leaves, decoded
// releases, and decode-as-a-service over the node's codec policy.
//
// Routes under /api/v1 answer with a JSON envelope ({success, data,
// error}) and are protected by an X-API-Key header when the server is
// configured with a key. /health and /metrics stay open.
package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// StartServer starts the HTTP server with all routes configured. It
// blocks until the listener fails.
func StartServer(store LeafStore, config ServerConfig) error {
	// Initialize metrics
	metrics := NewMetrics()

	server := NewServer(store, config, metrics, logrus.StandardLogger())

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Health check (unprotected for probes)
	r.Get("/health", metrics.InstrumentHandler("GET", "/health", server.handleHealth))

	// API key authentication for the research routes when configured
	r.Route("/api/v1", func(r chi.Router) {
		if config.APIKey != "" {
			r.Use(apiKeyMiddleware(config.APIKey, metrics))
		}

		r.Get("/leaves", metrics.InstrumentHandler("GET", "/api/v1/leaves", server.handleListLeaves))
		r.Get("/leaves/{index}", metrics.InstrumentHandler("GET", "/api/v1/leaves/{index}", server.handleGetLeaf))
		r.Get("/releases", metrics.InstrumentHandler("GET", "/api/v1/releases", server.handleListReleases))
		r.Post("/decode", metrics.InstrumentHandler("POST", "/api/v1/decode", server.handleDecode))
		r.Get("/stats", metrics.InstrumentHandler("GET", "/api/v1/stats", server.handleStats))
	})

	// Start background metrics updater
	go server.startMetricsUpdater()

	addr := fmt.Sprintf("%s:%d", config.Bind, config.Port)
	server.log.WithFields(logrus.Fields{
		"addr":          addr,
		"auth_enabled":  config.APIKey != "",
		"verify_hashes": config.VerifyHashes,
	}).Info("starting atleaf API server")

	return http.ListenAndServe(addr, r)
}
