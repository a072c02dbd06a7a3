package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/skillforge/skillforge/internal/achievements"
	"github.com/skillforge/skillforge/internal/auth"
	"github.com/skillforge/skillforge/internal/entitlements"
	"github.com/skillforge/skillforge/internal/observability"
	"github.com/skillforge/skillforge/internal/progression"
	"github.com/skillforge/skillforge/internal/shared"
	"github.com/skillforge/skillforge/internal/users"
	"github.com/skillforge/skillforge/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Identity       auth.IdentityMiddleware

	AuthHandler         *auth.Handler
	UsersHandler        *users.Handler
	ProgressionHandler  *progression.Handler
	AchievementsHandler *achievements.Handler
	EntitlementsHandler *entitlements.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Identity:       params.Identity.Attach,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		params.UsersHandler.MountRoutes(r)
		r.Route("/progression", params.ProgressionHandler.MountRoutes)
		r.Route("/achievements", params.AchievementsHandler.MountRoutes)
		r.Route("/admin", params.EntitlementsHandler.MountRoutes)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
