package telemetry

import (
	"errors"
	"time"
)

// DataPoint is one timestamped measurement submitted by a device. It is a
// transient ingestion unit; the persisted form lives in the database package.
type DataPoint struct {
	Timestamp  time.Time              `json:"timestamp"`
	MetricName string                 `json:"metric_name"`
	Value      Value                  `json:"value"`
	Unit       string                 `json:"unit,omitempty"`
	Tags       map[string]string      `json:"tags,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks structural requirements only. Range/type checks against a
// metric definition are advisory and happen during ingestion.
func (p *DataPoint) Validate() error {
	if p.MetricName == "" {
		return errors.New("metric_name is required")
	}
	if p.Value.Kind() == "" {
		return errors.New("value is required")
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}
	return nil
}
