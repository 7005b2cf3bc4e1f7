package handlers

import (
	"net/http"

	"github.com/fleetwatch/fleetwatch/internal/api"
	"github.com/fleetwatch/fleetwatch/internal/realtime"
	"github.com/fleetwatch/fleetwatch/internal/services"
)

// APIHandler handles the telemetry, metric, rule and alert API endpoints
type APIHandler struct {
	ingestion *services.IngestionService
	query     *services.QueryService
	metrics   *services.MetricService
	rules     *services.RuleService
	alerts    *services.AlertService
	fanout    *realtime.Fanout
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(ingestion *services.IngestionService, query *services.QueryService, metrics *services.MetricService, rules *services.RuleService, alerts *services.AlertService, fanout *realtime.Fanout) *APIHandler {
	return &APIHandler{
		ingestion: ingestion,
		query:     query,
		metrics:   metrics,
		rules:     rules,
		alerts:    alerts,
		fanout:    fanout,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Telemetry ingest and query
	mux.HandleFunc("POST /api/telemetry/{deviceID}", h.handleIngest)
	mux.HandleFunc("GET /api/telemetry/query", h.handleQueryRange)
	mux.HandleFunc("GET /api/telemetry/aggregate", h.handleAggregate)

	// Metric definitions
	mux.HandleFunc("GET /api/metrics", h.handleListMetrics)
	mux.HandleFunc("POST /api/metrics", h.handleCreateMetric)
	mux.HandleFunc("GET /api/metrics/{uuid}", h.handleGetMetric)
	mux.HandleFunc("PUT /api/metrics/{uuid}", h.handleUpdateMetric)
	mux.HandleFunc("DELETE /api/metrics/{uuid}", h.handleDeleteMetric)

	// Alert rules
	mux.HandleFunc("GET /api/rules", h.handleListRules)
	mux.HandleFunc("POST /api/rules", h.handleCreateRule)
	mux.HandleFunc("GET /api/rules/{uuid}", h.handleGetRule)
	mux.HandleFunc("PUT /api/rules/{uuid}", h.handleUpdateRule)
	mux.HandleFunc("DELETE /api/rules/{uuid}", h.handleDeleteRule)

	// Alerts
	mux.HandleFunc("GET /api/alerts", h.handleListAlerts)
	mux.HandleFunc("GET /api/alerts/{uuid}", h.handleGetAlert)
	mux.HandleFunc("POST /api/alerts/{uuid}/acknowledge", h.handleAcknowledgeAlert)
	mux.HandleFunc("POST /api/alerts/{uuid}/resolve", h.handleResolveAlert)

	// Stats
	mux.HandleFunc("GET /api/devices/{deviceID}/stats", h.handleDeviceStats)
	mux.HandleFunc("GET /api/stats", h.handleServiceStats)
}

// handleHealth handles GET /health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
