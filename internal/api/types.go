package api

import (
	"encoding/json"
	"time"
)

// PaginationMeta describes the pagination state of a list response.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// ========== Telemetry ==========

// IngestPointRequest is one data point in an ingest batch. Value keeps its
// raw JSON so the typed value model can classify it.
type IngestPointRequest struct {
	Timestamp  *time.Time             `json:"timestamp,omitempty"`
	MetricName string                 `json:"metric_name"`
	Value      json.RawMessage        `json:"value"`
	Unit       string                 `json:"unit,omitempty"`
	Tags       map[string]string      `json:"tags,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// IngestRequest is the body of POST /api/telemetry/{deviceID}.
type IngestRequest struct {
	Points []IngestPointRequest `json:"points"`
}

// ========== Metric Definitions ==========

// CreateMetricRequest is the body for defining a metric.
type CreateMetricRequest struct {
	Name                string                 `json:"name" validate:"required,min=1,max=255"`
	DataType            string                 `json:"data_type" validate:"required,oneof=numeric string boolean json binary geolocation timestamp"`
	MetricType          string                 `json:"metric_type,omitempty" validate:"omitempty,oneof=gauge counter histogram summary"`
	Unit                string                 `json:"unit,omitempty" validate:"max=64"`
	Description         string                 `json:"description,omitempty"`
	MinValue            *float64               `json:"min_value,omitempty"`
	MaxValue            *float64               `json:"max_value,omitempty"`
	RetentionDays       int                    `json:"retention_days,omitempty" validate:"min=0,max=3650"`
	AggregationInterval int                    `json:"aggregation_interval,omitempty" validate:"min=0"`
	Tags                []string               `json:"tags,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
}

// ========== Alert Rules ==========

// CreateRuleRequest is the body for creating an alert rule.
type CreateRuleRequest struct {
	Name                 string   `json:"name" validate:"required,min=1,max=255"`
	Description          string   `json:"description,omitempty"`
	MetricName           string   `json:"metric_name" validate:"required"`
	Condition            string   `json:"condition" validate:"required,oneof=> < == !="`
	ThresholdValue       string   `json:"threshold_value" validate:"required"`
	EvaluationWindow     int      `json:"evaluation_window,omitempty" validate:"min=0"`
	TriggerCount         int      `json:"trigger_count,omitempty" validate:"min=0"`
	Level                string   `json:"level,omitempty" validate:"omitempty,oneof=info warning error critical emergency"`
	DeviceIDs            []string `json:"device_ids,omitempty"`
	Enabled              *bool    `json:"enabled,omitempty"`
	CooldownMinutes      int      `json:"cooldown_minutes,omitempty" validate:"min=0"`
	NotificationChannels []string `json:"notification_channels,omitempty"`
	AutoResolve          *bool    `json:"auto_resolve,omitempty"`
	AutoResolveTimeout   int      `json:"auto_resolve_timeout,omitempty" validate:"min=0"`
}

// ========== Alerts ==========

// ResolveAlertRequest is the optional body for resolving an alert.
type ResolveAlertRequest struct {
	ResolvedBy string `json:"resolved_by,omitempty"`
}
