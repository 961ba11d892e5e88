package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sentra/internal/platform/config"
	"sentra/internal/platform/middleware"
	"sentra/pkg/platform/httputil"
)

// HealthChecker reports readiness of one backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouterDeps carries everything the router mounts.
type RouterDeps struct {
	Attendance *AttendanceHandler
	Integrity  *IntegrityHandler
	Alerts     *AlertHandler
	// Realtime is the websocket upgrade endpoint. Mounted outside the JSON
	// middleware chain.
	Realtime http.Handler
	// Health lists named dependency probes for /healthz.
	Health map[string]HealthChecker
	Logger *slog.Logger
	Config config.HTTPConfig
}

// NewRouter assembles the full HTTP surface.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Actor)

	r.Get("/healthz", handleHealth(deps.Health))
	r.Handle("/metrics", promhttp.Handler())
	if deps.Realtime != nil {
		r.Handle("/realtime", deps.Realtime)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(deps.Config.RequestTimeout))
		api.Use(middleware.ContentTypeJSON)
		deps.Attendance.Register(api)
		deps.Integrity.Register(api)
		if deps.Alerts != nil {
			deps.Alerts.Register(api)
		}
	})
	return r
}

// handleHealth probes every named dependency. Any failure turns the response
// into a 503 while still reporting the per-dependency outcome.
func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check.Health(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				deps[name] = err.Error()
				continue
			}
			deps[name] = "ok"
		}
		body := map[string]any{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(deps) > 0 {
			body["dependencies"] = deps
		}
		httputil.WriteJSON(w, status, body)
	}
}
