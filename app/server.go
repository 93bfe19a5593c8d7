package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	duelhandlers "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/infrastructure/handlers"
	sessionhandlers "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/infrastructure/handlers"
)

// RouterDeps carries everything the HTTP surface mounts.
type RouterDeps struct {
	SessionHandlers *sessionhandlers.SessionHandlers
	DuelHandlers    *duelhandlers.DuelHandlers
	Registry        *prometheus.Registry
	MetricsEnabled  bool
	Logger          *slog.Logger
}

// NewRouter builds the public HTTP surface: module routes under /api plus
// health and metrics endpoints.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if deps.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		deps.SessionHandlers.RegisterRoutes(r)
		deps.DuelHandlers.RegisterRoutes(r)
	})

	return r
}
