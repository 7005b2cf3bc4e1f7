package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/api"
	"github.com/fleetwatch/fleetwatch/internal/services"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// handleIngest handles POST /api/telemetry/{deviceID}
func (h *APIHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("deviceID")
	if deviceID == "" {
		api.RespondError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	var req api.IngestRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	points := make([]telemetry.DataPoint, 0, len(req.Points))
	for i, p := range req.Points {
		point := telemetry.DataPoint{
			MetricName: p.MetricName,
			Unit:       p.Unit,
			Tags:       p.Tags,
			Metadata:   p.Metadata,
		}
		if p.Timestamp != nil {
			point.Timestamp = *p.Timestamp
		}
		if len(p.Value) > 0 {
			if err := json.Unmarshal(p.Value, &point.Value); err != nil {
				api.RespondError(w, http.StatusBadRequest, fmt.Sprintf("point %d: %v", i, err))
				return
			}
		}
		points = append(points, point)
	}

	result := h.ingestion.Ingest(deviceID, points)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	api.RespondJSON(w, status, result)
}

// handleQueryRange handles GET /api/telemetry/query
func (h *APIHandler) handleQueryRange(w http.ResponseWriter, r *http.Request) {
	query, err := parseRangeQuery(r)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.query.QueryRange(*query)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	api.RespondJSON(w, http.StatusOK, result)
}

// handleAggregate handles GET /api/telemetry/aggregate
func (h *APIHandler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	query, err := parseRangeQuery(r)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.Aggregation == "" {
		api.RespondError(w, http.StatusBadRequest, "aggregation is required")
		return
	}

	result, err := h.query.QueryRange(*query)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	api.RespondJSON(w, http.StatusOK, result)
}

// parseRangeQuery parses the common telemetry query parameters.
func parseRangeQuery(r *http.Request) (*services.RangeQuery, error) {
	q := r.URL.Query()

	query := &services.RangeQuery{
		DeviceIDs:   splitParam(q.Get("device_ids")),
		MetricNames: splitParam(q.Get("metric_names")),
	}

	startParam := q.Get("start")
	endParam := q.Get("end")
	if startParam == "" || endParam == "" {
		return nil, fmt.Errorf("start and end are required")
	}
	start, err := time.Parse(time.RFC3339, startParam)
	if err != nil {
		return nil, fmt.Errorf("invalid start: %v", err)
	}
	end, err := time.Parse(time.RFC3339, endParam)
	if err != nil {
		return nil, fmt.Errorf("invalid end: %v", err)
	}
	query.Start = start
	query.End = end

	if agg := q.Get("aggregation"); agg != "" {
		aggType := services.AggregationType(agg)
		if !services.ValidAggregationType(aggType) {
			return nil, fmt.Errorf("unsupported aggregation type: %s", agg)
		}
		query.Aggregation = aggType
	}

	if interval := q.Get("interval"); interval != "" {
		n, err := strconv.Atoi(interval)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("interval must be a positive integer of seconds")
		}
		query.IntervalSec = n
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("limit must be a non-negative integer")
		}
		query.Limit = n
	}

	return query, nil
}

// splitParam splits a comma-separated query parameter, dropping empties.
func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
