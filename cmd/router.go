package cmd

import (
	"net/http"

	"meetup-backend/internal/handlers"
	"meetup-backend/internal/metrics"
	"meetup-backend/internal/middleware"
	"meetup-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// routerDeps collects what the HTTP layer needs
type routerDeps struct {
	matchmaking *services.MatchmakingService
	history     handlers.PairHistory // nil when the history database is disabled
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer // nil disables /metrics
	metricsPath string
	logger      zerolog.Logger
}

func newRouter(deps routerDeps) http.Handler {
	presenceHandler := handlers.NewPresenceHandler(deps.matchmaking)
	pairHandler := handlers.NewPairHandler(deps.matchmaking)

	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.CORS)

	routes := func(r chi.Router) {
		r.Post("/presence", presenceHandler.ReportPresence)
		r.Delete("/presence/{user_id}", presenceHandler.Leave)
		r.Post("/decision", pairHandler.Decide)
		r.Get("/pairs/{pair_id}", pairHandler.GetPair)

		if deps.history != nil {
			historyHandler := handlers.NewHistoryHandler(deps.history)
			r.Get("/users/{user_id}/pairs", historyHandler.ListPairs)
		}
	}

	routes(r)
	r.Route("/api/v1", routes)

	r.Get("/healthz", handlers.Health)

	if deps.gatherer != nil {
		path := deps.metricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.HandlerFor(deps.gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	return r
}
