// Package httpapi assembles the full HTTP surface: domain handlers, the
// middleware chain, health and metrics endpoints.
package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Coritp27/sysga-sub001/internal/platform/metrics"
	"github.com/Coritp27/sysga-sub001/internal/platform/middleware"
	redisclient "github.com/Coritp27/sysga-sub001/internal/platform/redis"
	"github.com/Coritp27/sysga-sub001/internal/transport/http/shared"
)

// Registrar is implemented by every domain handler package.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router composes. Redis may be nil (not
// configured); health then skips it.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	DB       *sql.DB
	Redis    *redisclient.Client
	Handlers []Registrar
}

// New builds the root router. The outer chain runs for every route; auth and
// per-domain timeouts live in the handlers' own subrouters.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.Latency(deps.Metrics))
	}

	r.Get("/healthz", healthHandler(deps))
	r.Handle("/metrics", promhttp.Handler())

	for _, handler := range deps.Handlers {
		handler.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func healthHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		response := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK

		if deps.DB != nil {
			if err := deps.DB.PingContext(ctx); err != nil {
				response.Checks["postgres"] = err.Error()
				response.Status = "degraded"
				status = http.StatusServiceUnavailable
			} else {
				response.Checks["postgres"] = "ok"
			}
		}
		if deps.Redis != nil {
			if err := deps.Redis.Health(ctx); err != nil {
				response.Checks["redis"] = err.Error()
				response.Status = "degraded"
				status = http.StatusServiceUnavailable
			} else {
				response.Checks["redis"] = "ok"
			}
		}

		shared.WriteJSON(w, status, response)
	}
}
