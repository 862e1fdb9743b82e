// Package http assembles the service's HTTP surface.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "jagga/internal/authtoken/handler"
	ledgerhandler "jagga/internal/ledger/handler"
	"jagga/internal/platform/metrics"
	"jagga/internal/platform/middleware"
	registryhandler "jagga/internal/registry/handler"
	requesthandler "jagga/internal/request/handler"
	"jagga/internal/transport/http/shared"
)

// Deps carries everything the router mounts.
type Deps struct {
	Requests *requesthandler.Handler
	Registry *registryhandler.Handler
	Ledger   *ledgerhandler.Handler
	Auth     *authhandler.Handler
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// HealthCheck reports backing-store health; nil means always healthy.
	HealthCheck func() error
}

// NewRouter wires middleware and mounts every handler group.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Latency(deps.Metrics))
	r.Use(middleware.Timeout(90 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)
		api.Mount("/requests", deps.Requests.Routes())
		api.Mount("/parcels", deps.Registry.Routes())
		api.Mount("/ledger", deps.Ledger.Routes())
		api.Mount("/auth", deps.Auth.Routes())
		api.Get("/stats", deps.Registry.Stats)
		api.Get("/fees", deps.Ledger.Fees)
	})

	return r
}
