package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tourguard/safety-band/internal/aggregate"
	"github.com/tourguard/safety-band/internal/engine"
	"github.com/tourguard/safety-band/internal/incident"
	"github.com/tourguard/safety-band/internal/logger"
	"github.com/tourguard/safety-band/internal/registry"
)

// API exposes the monitoring backend over HTTP.
type API struct {
	registry *registry.Registry
	engine   *engine.Engine
	store    incident.Store
	agg      *aggregate.Aggregator
}

// New creates the HTTP boundary over the wired components.
func New(reg *registry.Registry, eng *engine.Engine, store incident.Store, agg *aggregate.Aggregator) *API {
	return &API{
		registry: reg,
		engine:   eng,
		store:    store,
		agg:      agg,
	}
}

// Router builds the route table.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tourists", a.handleRegister)
		r.Get("/tourists/{uvid}", a.handleLookup)
		r.Patch("/tourists/{uvid}", a.handleUpdateContact)
		r.Get("/sessions/active", a.handleActiveSessions)

		r.Route("/events", func(r chi.Router) {
			r.Post("/location", a.handleLocation)
			r.Post("/button", a.handleButton)
			r.Post("/exit", a.handleExit)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", a.handleOpenAlerts)
			r.Post("/{id}/resolve", a.handleResolve)
			r.Post("/{id}/escalate", a.handleEscalate)
			r.Post("/{id}/responder", a.handleAssignResponder)
		})

		r.Get("/incidents", a.handleIncidents)
		r.Get("/summary", a.handleSummary)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/healthz", handleHealthz)

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per request with outcome and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		logger.DebugKV(r.Context(), "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
