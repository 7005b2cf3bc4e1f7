package handlers

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/api"
	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/middleware"
	"github.com/fleetwatch/fleetwatch/internal/services"
)

// handleListAlerts handles GET /api/alerts
func (h *APIHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.AlertFilter{
		DeviceID: q.Get("device_id"),
		Status:   database.AlertStatus(q.Get("status")),
		Level:    database.AlertLevel(q.Get("level")),
	}

	if q.Get("page") != "" || q.Get("per_page") != "" {
		params := api.ParsePagination(r)
		total, err := h.alerts.CountAlerts(filter)
		if err != nil {
			api.RespondError(w, http.StatusInternalServerError, "Failed to count alerts")
			return
		}

		filter.Limit = params.PerPage
		filter.Offset = params.Offset()
		alerts, err := h.alerts.ListAlerts(filter)
		if err != nil {
			api.RespondError(w, http.StatusInternalServerError, "Failed to list alerts")
			return
		}

		api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
			Data: alerts,
			Pagination: api.PaginationMeta{
				Page:       params.Page,
				PerPage:    params.PerPage,
				Total:      total,
				TotalPages: params.TotalPages(total),
			},
		})
		return
	}

	filter.Limit = 500
	alerts, err := h.alerts.ListAlerts(filter)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	api.RespondJSON(w, http.StatusOK, alerts)
}

// handleGetAlert handles GET /api/alerts/{uuid}
func (h *APIHandler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.alerts.GetAlert(r.PathValue("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Alert not found")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Failed to get alert")
		return
	}
	api.RespondJSON(w, http.StatusOK, alert)
}

// handleAcknowledgeAlert handles POST /api/alerts/{uuid}/acknowledge
func (h *APIHandler) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	ackedBy := middleware.GetUserFromContext(r.Context())
	if ackedBy == "" {
		ackedBy = "operator"
	}

	alert, err := h.alerts.Acknowledge(r.PathValue("uuid"), ackedBy)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Alert not found")
			return
		}
		api.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	api.RespondJSON(w, http.StatusOK, alert)
}

// handleResolveAlert handles POST /api/alerts/{uuid}/resolve
func (h *APIHandler) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	resolvedBy := middleware.GetUserFromContext(r.Context())
	if r.ContentLength > 0 {
		var req api.ResolveAlertRequest
		if err := api.DecodeJSON(r, &req); err != nil {
			api.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.ResolvedBy != "" {
			resolvedBy = req.ResolvedBy
		}
	}
	if resolvedBy == "" {
		resolvedBy = "operator"
	}

	alert, err := h.alerts.Resolve(r.PathValue("uuid"), resolvedBy)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Alert not found")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Failed to resolve alert")
		return
	}
	api.RespondJSON(w, http.StatusOK, alert)
}

// handleDeviceStats handles GET /api/devices/{deviceID}/stats
func (h *APIHandler) handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.query.GetDeviceStats(r.PathValue("deviceID"))
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get device stats")
		return
	}
	api.RespondJSON(w, http.StatusOK, stats)
}

// handleServiceStats handles GET /api/stats
func (h *APIHandler) handleServiceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.query.GetServiceStats()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get service stats")
		return
	}
	api.RespondJSON(w, http.StatusOK, stats)
}
