package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/featurekit/featurekit/internal/entitlement"
	"github.com/featurekit/featurekit/internal/features"
	"github.com/featurekit/featurekit/internal/observability"
	"github.com/featurekit/featurekit/internal/overrides"
	"github.com/featurekit/featurekit/internal/plans"
	"github.com/featurekit/featurekit/internal/roles"
	"github.com/featurekit/featurekit/internal/usage"
	"github.com/featurekit/featurekit/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	EntitlementHandler *entitlement.Handler
	FeaturesHandler    *features.Handler
	PlansHandler       *plans.Handler
	RolesHandler       *roles.Handler
	OverridesHandler   *overrides.Handler
	UsageHandler       *usage.Handler
	JobHandler         *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.EntitlementHandler != nil {
		r.Route("/entitlements", params.EntitlementHandler.MountRoutes)
	}
	if params.FeaturesHandler != nil {
		r.Route("/features", params.FeaturesHandler.MountRoutes)
	}
	if params.PlansHandler != nil {
		r.Route("/plans", params.PlansHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		r.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.OverridesHandler != nil {
		r.Route("/overrides", params.OverridesHandler.MountRoutes)
	}
	if params.UsageHandler != nil {
		r.Route("/usage", params.UsageHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
