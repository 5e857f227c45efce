package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/corvuslab/meshbus/internal/audit"
	"github.com/corvuslab/meshbus/internal/hub"
	"github.com/corvuslab/meshbus/internal/logger"
)

// Router builds the dashboard's HTTP surface over h, streaming resolution
// and publish events through monitor and serving the audit trail from sink.
//
// @title meshbus dashboard API
// @version 1.0
// @BasePath /api/v1
func Router(h *hub.Hub, monitor *Monitor, sink audit.Sink, log *slog.Logger, opts ...RouterOption) *mux.Router {
	if log == nil {
		log = slog.Default()
	}
	cfg := routerConfig{metricsPath: "/metrics"}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := mux.NewRouter()
	r.Use(logger.Middleware(log))

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/hub", hubInfoHandler(h)).Methods(http.MethodGet)
	api.HandleFunc("/hub/children", hubChildrenHandler(h)).Methods(http.MethodGet)
	api.HandleFunc("/audit/recent", auditRecentHandler(sink)).Methods(http.MethodGet)

	r.HandleFunc("/ws/monitor", monitor.ServeWS)
	r.PathPrefix("/docs").Handler(httpSwagger.WrapHandler)
	if cfg.metricsEnabled {
		r.Handle(cfg.metricsPath, promhttp.Handler())
	}

	return r
}

// RouterOption configures optional dashboard surfaces beyond the core
// health/hub/audit/websocket routes.
type RouterOption func(*routerConfig)

type routerConfig struct {
	metricsEnabled bool
	metricsPath    string
}

// WithMetrics exposes the process's Prometheus registry at path when
// enabled is true.
func WithMetrics(enabled bool, path string) RouterOption {
	return func(c *routerConfig) {
		c.metricsEnabled = enabled
		if path != "" {
			c.metricsPath = path
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// @Summary Dashboard liveness probe
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type hubInfo struct {
	ID    string `json:"id"`
	Scope string `json:"scope"`
}

// @Summary This hub's identity and scope
// @Success 200 {object} hubInfo
// @Router /hub [get]
func hubInfoHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, hubInfo{ID: h.ID(), Scope: h.Scope().String()})
	}
}

// @Summary Child hubs attached beneath this one
// @Success 200 {array} hubInfo
// @Router /hub/children [get]
func hubChildrenHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		children := h.Children()
		out := make([]hubInfo, 0, len(children))
		for _, c := range children {
			out = append(out, hubInfo{ID: c.ID(), Scope: c.Scope().String()})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// @Summary Most recent audit events
// @Param limit query int false "max events to return"
// @Success 200 {array} audit.Event
// @Router /audit/recent [get]
func auditRecentHandler(sink audit.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sink == nil {
			writeJSON(w, http.StatusOK, []audit.Event{})
			return
		}
		limit := 50
		if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
			limit = n
		}
		events, err := sink.Recent(r.Context(), limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}
