package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dhe2en832/erp-next-system-sub000/internal/chain"
	"github.com/dhe2en832/erp-next-system-sub000/internal/observability"
	"github.com/dhe2en832/erp-next-system-sub000/internal/platform/httpx"
	"github.com/dhe2en832/erp-next-system-sub000/internal/stock"
	"github.com/dhe2en832/erp-next-system-sub000/internal/warkat"
	"github.com/dhe2en832/erp-next-system-sub000/jobs"
)

// Pinger checks a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	ChainHandler  *chain.Handler
	StockHandler  *stock.Handler
	WarkatHandler *warkat.Handler
	JobHandler    *jobs.Handler
	ERP           Pinger
	Metrics       *observability.Metrics
	Clock         func() time.Time
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
		Clock:   params.Clock,
	}) {
		r.Use(mw)
	}

	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.ERP == nil {
			httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok", "erp": "unchecked"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := params.ERP.Ping(ctx); err != nil {
			params.Logger.Warn("erp not reachable", slog.Any("error", err))
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "erp": "unreachable"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok", "erp": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if params.ChainHandler != nil {
			params.ChainHandler.MountRoutes(r)
		}
		if params.StockHandler != nil {
			params.StockHandler.MountRoutes(r)
		}
		if params.WarkatHandler != nil {
			params.WarkatHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
