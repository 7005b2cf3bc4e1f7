package handlers

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/api"
	"github.com/fleetwatch/fleetwatch/internal/database"
)

// handleListRules handles GET /api/rules
func (h *APIHandler) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.ListRules()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to list alert rules")
		return
	}
	api.RespondJSON(w, http.StatusOK, rules)
}

// handleCreateRule handles POST /api/rules
func (h *APIHandler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRuleRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	rule := &database.AlertRule{
		Name:                 req.Name,
		Description:          req.Description,
		MetricName:           req.MetricName,
		Condition:            database.AlertCondition(req.Condition),
		ThresholdValue:       req.ThresholdValue,
		EvaluationWindow:     req.EvaluationWindow,
		TriggerCount:         req.TriggerCount,
		Level:                database.AlertLevel(req.Level),
		DeviceIDs:            req.DeviceIDs,
		CooldownMinutes:      req.CooldownMinutes,
		NotificationChannels: req.NotificationChannels,
		AutoResolveTimeout:   req.AutoResolveTimeout,
		Enabled:              req.Enabled,
		AutoResolve:          req.AutoResolve,
	}

	created, err := h.rules.CreateRule(rule)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	api.RespondJSON(w, http.StatusCreated, created)
}

// handleGetRule handles GET /api/rules/{uuid}
func (h *APIHandler) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.GetRule(r.PathValue("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Alert rule not found")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Failed to get alert rule")
		return
	}
	api.RespondJSON(w, http.StatusOK, rule)
}

// handleUpdateRule handles PUT /api/rules/{uuid}
func (h *APIHandler) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := api.DecodeJSON(r, &updates); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := h.rules.UpdateRule(r.PathValue("uuid"), updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Alert rule not found")
			return
		}
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	api.RespondJSON(w, http.StatusOK, rule)
}

// handleDeleteRule handles DELETE /api/rules/{uuid}
func (h *APIHandler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.DeleteRule(r.PathValue("uuid")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Alert rule not found")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Failed to delete alert rule")
		return
	}
	api.RespondNoContent(w)
}
