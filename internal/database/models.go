package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONB is a custom type for JSON document columns (jsonb on PostgreSQL,
// text on SQLite).
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		s, sok := value.(string)
		if !sok {
			return errors.New("type assertion to []byte failed")
		}
		bytes = []byte(s)
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// StringList is a JSON-serialized list of strings (device scopes, tags,
// notification channels).
type StringList []string

// Scan implements the sql.Scanner interface
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		s, sok := value.(string)
		if !sok {
			return errors.New("type assertion to []byte failed")
		}
		bytes = []byte(s)
	}
	return json.Unmarshal(bytes, l)
}

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(l))
}

// Contains reports whether s is present in the list.
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// ========== Metric Catalog Models ==========

// MetricDataType is the declared payload type of a metric
type MetricDataType string

const (
	DataTypeNumeric     MetricDataType = "numeric"
	DataTypeString      MetricDataType = "string"
	DataTypeBoolean     MetricDataType = "boolean"
	DataTypeJSON        MetricDataType = "json"
	DataTypeBinary      MetricDataType = "binary"
	DataTypeGeolocation MetricDataType = "geolocation"
	DataTypeTimestamp   MetricDataType = "timestamp"
)

// MetricType describes measurement semantics
type MetricType string

const (
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeCounter   MetricType = "counter"
	MetricTypeHistogram MetricType = "histogram"
	MetricTypeSummary   MetricType = "summary"
)

// MetricDefinition declares a named metric: its payload type, optional
// numeric bounds, and retention. Creation is idempotent by name.
type MetricDefinition struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	UUID                string         `gorm:"uniqueIndex;size:36;not null" json:"metric_id"`
	Name                string         `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Description         string         `gorm:"type:text" json:"description"`
	DataType            MetricDataType `gorm:"type:varchar(32);not null;default:'numeric'" json:"data_type"`
	MetricType          MetricType     `gorm:"type:varchar(32);not null;default:'gauge'" json:"metric_type"`
	Unit                string         `gorm:"size:32" json:"unit,omitempty"`
	MinValue            *float64       `json:"min_value,omitempty"`
	MaxValue            *float64       `json:"max_value,omitempty"`
	RetentionDays       int            `gorm:"default:90" json:"retention_days"`
	AggregationInterval int            `gorm:"default:60" json:"aggregation_interval"` // seconds
	Tags                StringList     `gorm:"type:text" json:"tags"`
	Metadata            JSONB          `gorm:"type:text" json:"metadata"`
	CreatedBy           string         `gorm:"size:128" json:"created_by"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// BeforeCreate assigns the external UUID
func (m *MetricDefinition) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == "" {
		m.UUID = uuid.New().String()
	}
	return nil
}

func (MetricDefinition) TableName() string {
	return "metric_definitions"
}

// ========== Alert Rule Models ==========

// AlertCondition is the comparison applied against a rule threshold
type AlertCondition string

const (
	ConditionGreaterThan AlertCondition = ">"
	ConditionLessThan    AlertCondition = "<"
	ConditionEqual       AlertCondition = "=="
	ConditionNotEqual    AlertCondition = "!="
)

// ValidAlertCondition reports whether c is a supported condition.
func ValidAlertCondition(c AlertCondition) bool {
	switch c {
	case ConditionGreaterThan, ConditionLessThan, ConditionEqual, ConditionNotEqual:
		return true
	}
	return false
}

// AlertLevel is the severity attached to rules and the alerts they create
type AlertLevel string

const (
	LevelInfo      AlertLevel = "info"
	LevelWarning   AlertLevel = "warning"
	LevelError     AlertLevel = "error"
	LevelCritical  AlertLevel = "critical"
	LevelEmergency AlertLevel = "emergency"
)

// AlertRule defines a threshold check evaluated against incoming points.
// MetricName is a soft reference: the metric definition may not exist, and
// deleting it does not cascade here.
type AlertRule struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	UUID                 string         `gorm:"uniqueIndex;size:36;not null" json:"rule_id"`
	Name                 string         `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Description          string         `gorm:"type:text" json:"description"`
	MetricName           string         `gorm:"size:128;not null;index" json:"metric_name"`
	Condition            AlertCondition `gorm:"type:varchar(8);not null" json:"condition"`
	ThresholdValue       string         `gorm:"type:text;not null" json:"threshold_value"`
	EvaluationWindow     int            `gorm:"default:300" json:"evaluation_window"` // seconds
	TriggerCount         int            `gorm:"default:1" json:"trigger_count"`
	Level                AlertLevel     `gorm:"type:varchar(16);not null;default:'warning'" json:"level"`
	DeviceIDs            StringList     `gorm:"type:text" json:"device_ids"`    // empty = all devices
	DeviceGroups         StringList     `gorm:"type:text" json:"device_groups"` // empty = all groups
	DeviceFilters        JSONB          `gorm:"type:text" json:"device_filters"`
	NotificationChannels StringList     `gorm:"type:text" json:"notification_channels"`
	CooldownMinutes      int            `gorm:"default:15" json:"cooldown_minutes"`
	AutoResolve          *bool          `json:"auto_resolve"`
	AutoResolveTimeout   int            `gorm:"default:3600" json:"auto_resolve_timeout"` // seconds
	Enabled              *bool          `gorm:"index" json:"enabled"`
	Tags                 StringList     `gorm:"type:text" json:"tags"`
	TotalTriggers        int64          `gorm:"default:0" json:"total_triggers"`
	LastTriggered        *time.Time     `json:"last_triggered,omitempty"`
	CreatedBy            string         `gorm:"size:128" json:"created_by"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// BeforeCreate assigns the external UUID
func (r *AlertRule) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == "" {
		r.UUID = uuid.New().String()
	}
	return nil
}

// AppliesToDevice reports whether the rule's device scope includes deviceID.
// An empty scope applies to every device.
func (r *AlertRule) AppliesToDevice(deviceID string) bool {
	if len(r.DeviceIDs) == 0 {
		return true
	}
	return r.DeviceIDs.Contains(deviceID)
}

// IsEnabled reports whether the rule participates in evaluation. An unset
// flag counts as enabled; CreateRule fills it before the rule is stored.
func (r *AlertRule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// AutoResolves reports whether alerts from this rule get an auto-resolve
// deadline.
func (r *AlertRule) AutoResolves() bool {
	return r.AutoResolve == nil || *r.AutoResolve
}

// InCooldown reports whether the rule triggered within its cooldown window.
func (r *AlertRule) InCooldown(now time.Time) bool {
	if r.LastTriggered == nil || r.CooldownMinutes <= 0 {
		return false
	}
	return now.Sub(*r.LastTriggered) < time.Duration(r.CooldownMinutes)*time.Minute
}

func (AlertRule) TableName() string {
	return "alert_rules"
}

// ========== Alert Models ==========

// AlertStatus is the lifecycle state of an alert instance
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusSuppressed   AlertStatus = "suppressed"
)

// Alert is a triggered rule instance. Rule fields are denormalized at
// trigger time so the alert survives rule deletion.
type Alert struct {
	ID                   uint        `gorm:"primaryKey" json:"id"`
	UUID                 string      `gorm:"uniqueIndex;size:36;not null" json:"alert_id"`
	RuleID               uint        `gorm:"not null;index" json:"rule_id"`
	RuleUUID             string      `gorm:"size:36;index" json:"rule_uuid"`
	RuleName             string      `gorm:"size:128" json:"rule_name"`
	DeviceID             string      `gorm:"size:128;not null;index" json:"device_id"`
	MetricName           string      `gorm:"size:128;not null;index" json:"metric_name"`
	Level                AlertLevel  `gorm:"type:varchar(16);not null" json:"level"`
	Status               AlertStatus `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	Message              string      `gorm:"type:text" json:"message"`
	CurrentValue         string      `gorm:"type:text" json:"current_value"`
	ThresholdValue       string      `gorm:"type:text" json:"threshold_value"`
	TriggeredAt          time.Time   `json:"triggered_at"`
	AcknowledgedAt       *time.Time  `json:"acknowledged_at,omitempty"`
	ResolvedAt           *time.Time  `json:"resolved_at,omitempty"`
	AutoResolveAt        *time.Time  `gorm:"index" json:"auto_resolve_at,omitempty"`
	AffectedDevicesCount int         `gorm:"default:1" json:"affected_devices_count"`
	Tags                 StringList  `gorm:"type:text" json:"tags"`
	Metadata             JSONB       `gorm:"type:text" json:"metadata"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// BeforeCreate assigns the external UUID and trigger timestamp
func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.New().String()
	}
	if a.TriggeredAt.IsZero() {
		a.TriggeredAt = time.Now().UTC()
	}
	return nil
}

func (Alert) TableName() string {
	return "alerts"
}

// ========== Time Series Models ==========

// TelemetryPoint is a stored measurement row. The composite key
// (device_id, metric_name, timestamp) is upserted: a second write with the
// same key overwrites the first.
type TelemetryPoint struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	DeviceID     string    `gorm:"size:128;not null;uniqueIndex:idx_point_key,priority:1" json:"device_id"`
	MetricName   string    `gorm:"size:128;not null;uniqueIndex:idx_point_key,priority:2" json:"metric_name"`
	Timestamp    time.Time `gorm:"not null;uniqueIndex:idx_point_key,priority:3;index" json:"timestamp"`
	ValueType    string    `gorm:"size:16;not null" json:"value_type"`
	NumericValue *float64  `json:"value_numeric,omitempty"`
	StringValue  *string   `gorm:"type:text" json:"value_string,omitempty"`
	BoolValue    *bool     `json:"value_boolean,omitempty"`
	JSONValue    JSONB     `gorm:"type:text" json:"value_json,omitempty"`
	Unit         string    `gorm:"size:32" json:"unit,omitempty"`
	Tags         JSONB     `gorm:"type:text" json:"tags,omitempty"`
	Metadata     JSONB     `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt    time.Time `json:"-"`
}

func (TelemetryPoint) TableName() string {
	return "telemetry_points"
}
