package handlers

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/api"
	"github.com/fleetwatch/fleetwatch/internal/database"
)

// handleListMetrics handles GET /api/metrics
func (h *APIHandler) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	definitions, err := h.metrics.ListMetrics()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to list metric definitions")
		return
	}
	api.RespondJSON(w, http.StatusOK, definitions)
}

// handleCreateMetric handles POST /api/metrics
func (h *APIHandler) handleCreateMetric(w http.ResponseWriter, r *http.Request) {
	var req api.CreateMetricRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	def := &database.MetricDefinition{
		Name:                req.Name,
		DataType:            database.MetricDataType(req.DataType),
		MetricType:          database.MetricType(req.MetricType),
		Unit:                req.Unit,
		Description:         req.Description,
		MinValue:            req.MinValue,
		MaxValue:            req.MaxValue,
		RetentionDays:       req.RetentionDays,
		AggregationInterval: req.AggregationInterval,
		Tags:                req.Tags,
		Metadata:            req.Metadata,
	}

	created, isNew, err := h.metrics.DefineMetric(def)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := http.StatusCreated
	if !isNew {
		status = http.StatusOK
	}
	api.RespondJSON(w, status, created)
}

// handleGetMetric handles GET /api/metrics/{uuid}
func (h *APIHandler) handleGetMetric(w http.ResponseWriter, r *http.Request) {
	def, err := h.metrics.GetMetric(r.PathValue("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Metric definition not found")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Failed to get metric definition")
		return
	}
	api.RespondJSON(w, http.StatusOK, def)
}

// handleUpdateMetric handles PUT /api/metrics/{uuid}
func (h *APIHandler) handleUpdateMetric(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := api.DecodeJSON(r, &updates); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	def, err := h.metrics.UpdateMetric(r.PathValue("uuid"), updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Metric definition not found")
			return
		}
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	api.RespondJSON(w, http.StatusOK, def)
}

// handleDeleteMetric handles DELETE /api/metrics/{uuid}
func (h *APIHandler) handleDeleteMetric(w http.ResponseWriter, r *http.Request) {
	if err := h.metrics.DeleteMetric(r.PathValue("uuid")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Metric definition not found")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Failed to delete metric definition")
		return
	}
	api.RespondNoContent(w)
}
