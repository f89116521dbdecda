// Package http wires the domain handlers into the service's HTTP surface.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cataloghandler "pdv/internal/catalog/handler"
	sessionhandler "pdv/internal/cashsession/handler"
	"pdv/internal/platform/metrics"
	"pdv/internal/platform/middleware"
	registerhandler "pdv/internal/register/handler"
	salehandler "pdv/internal/sale/handler"
)

// Deps collects everything the router mounts.
type Deps struct {
	Catalog   *cataloghandler.Handler
	Sessions  *sessionhandler.Handler
	Registers *registerhandler.Handler
	Sales     *salehandler.Handler

	TokenValidator middleware.TokenValidator
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

// NewRouter builds the full route tree. Liveness and metrics stay outside the
// authenticated API group.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.LatencyMiddleware(deps.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Timeout(deps.RequestTimeout))
		r.Use(middleware.RequireAuth(deps.TokenValidator, deps.Logger))

		deps.Catalog.Register(r)
		deps.Sessions.Register(r)
		deps.Registers.Register(r)
		deps.Sales.Register(r)
	})

	return r
}
