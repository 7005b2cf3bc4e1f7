package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/events"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/realtime"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// IngestResult summarizes one ingestion batch. Partial success is a normal
// outcome: per-point failures are counted, not rolled back.
type IngestResult struct {
	Success       bool     `json:"success"`
	IngestedCount int      `json:"ingested_count"`
	FailedCount   int      `json:"failed_count"`
	TotalCount    int      `json:"total_count"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// IngestionService validates and writes incoming telemetry, then drives
// rule evaluation and realtime fan-out per point. It never returns an
// error to its caller: every failure mode ends up in the result.
type IngestionService struct {
	db        *gorm.DB
	catalog   *MetricService
	evaluator *AlertEvaluator
	fanout    *realtime.Fanout
	notifier  *events.Notifier
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(db *gorm.DB, catalog *MetricService, evaluator *AlertEvaluator, fanout *realtime.Fanout, notifier *events.Notifier) *IngestionService {
	return &IngestionService{
		db:        db,
		catalog:   catalog,
		evaluator: evaluator,
		fanout:    fanout,
		notifier:  notifier,
	}
}

// Ingest processes a batch of points for one device, in caller order. Per
// point: advisory validation, upsert into the time series, rule evaluation,
// realtime notify. After the batch one telemetry.data.received event is
// emitted when anything was written.
func (s *IngestionService) Ingest(deviceID string, points []telemetry.DataPoint) *IngestResult {
	started := time.Now()
	defer func() {
		metrics.IngestDuration.Observe(time.Since(started).Seconds())
	}()

	result := &IngestResult{TotalCount: len(points)}
	if deviceID == "" {
		result.FailedCount = len(points)
		result.Errors = append(result.Errors, "device_id is required")
		return result
	}
	if len(points) == 0 {
		result.Success = true
		return result
	}

	seenMetrics := make(map[string]struct{})
	for i := range points {
		point := points[i]
		if err := point.Validate(); err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("point %d: %v", i, err))
			continue
		}

		// Validation against the metric definition is advisory: the
		// point is written either way, violations are only reported.
		if warning := s.validateAgainstDefinition(&point); warning != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("point %d: %s", i, warning))
			metrics.ValidationWarnings.Inc()
		}

		row := pointToRow(deviceID, &point)
		if err := database.UpsertPoint(s.db, row); err != nil {
			log.Printf("Ingestion: failed to write point %s/%s@%s: %v",
				deviceID, point.MetricName, point.Timestamp.Format(time.RFC3339), err)
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("point %d: write failed", i))
			metrics.PointWriteFailures.Inc()
			continue
		}
		result.IngestedCount++
		seenMetrics[point.MetricName] = struct{}{}
		metrics.PointsIngested.Inc()

		s.evaluator.Check(deviceID, point)
		s.fanout.Notify(deviceID, point)
	}

	if result.IngestedCount > 0 {
		s.notifier.DataReceived(deviceID, len(seenMetrics), result.IngestedCount)
	}
	result.Success = result.FailedCount == 0
	return result
}

// validateAgainstDefinition checks the point against its metric definition,
// if one exists. The returned string is empty when the point conforms; an
// absent definition means no constraint applies.
func (s *IngestionService) validateAgainstDefinition(point *telemetry.DataPoint) string {
	def, err := s.catalog.GetMetricByName(point.MetricName)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Ingestion: metric lookup for %s failed: %v", point.MetricName, err)
		}
		return ""
	}

	if def.DataType == database.DataTypeNumeric {
		num, ok := point.Value.Float()
		if !ok {
			return fmt.Sprintf("metric %s declares numeric values, got %s", def.Name, point.Value.Kind())
		}
		if def.MinValue != nil && num < *def.MinValue {
			return fmt.Sprintf("value %v below min_value %v for metric %s", num, *def.MinValue, def.Name)
		}
		if def.MaxValue != nil && num > *def.MaxValue {
			return fmt.Sprintf("value %v above max_value %v for metric %s", num, *def.MaxValue, def.Name)
		}
	}
	return ""
}

// pointToRow maps the union value onto the row's typed slots.
func pointToRow(deviceID string, point *telemetry.DataPoint) *database.TelemetryPoint {
	row := &database.TelemetryPoint{
		DeviceID:   deviceID,
		MetricName: point.MetricName,
		Timestamp:  point.Timestamp.UTC(),
		ValueType:  string(point.Value.Kind()),
		Unit:       point.Unit,
	}
	switch point.Value.Kind() {
	case telemetry.KindNumeric:
		num, _ := point.Value.Float()
		row.NumericValue = &num
	case telemetry.KindString:
		str, _ := point.Value.Text()
		row.StringValue = &str
	case telemetry.KindBool:
		b, _ := point.Value.Bool()
		row.BoolValue = &b
	case telemetry.KindJSON:
		obj, _ := point.Value.Object()
		row.JSONValue = database.JSONB(obj)
	}
	if len(point.Tags) > 0 {
		tags := make(database.JSONB, len(point.Tags))
		for k, v := range point.Tags {
			tags[k] = v
		}
		row.Tags = tags
	}
	if len(point.Metadata) > 0 {
		row.Metadata = database.JSONB(point.Metadata)
	}
	return row
}

// rowToPoint reconstructs the transient point from a stored row.
func rowToPoint(row *database.TelemetryPoint) telemetry.DataPoint {
	point := telemetry.DataPoint{
		Timestamp:  row.Timestamp,
		MetricName: row.MetricName,
		Unit:       row.Unit,
	}
	switch row.ValueType {
	case string(telemetry.KindNumeric):
		if row.NumericValue != nil {
			point.Value = telemetry.NumericValue(*row.NumericValue)
		}
	case string(telemetry.KindString):
		if row.StringValue != nil {
			point.Value = telemetry.StringValue(*row.StringValue)
		}
	case string(telemetry.KindBool):
		if row.BoolValue != nil {
			point.Value = telemetry.BoolValue(*row.BoolValue)
		}
	case string(telemetry.KindJSON):
		point.Value = telemetry.JSONValue(row.JSONValue)
	}
	if len(row.Tags) > 0 {
		point.Tags = make(map[string]string, len(row.Tags))
		for k, v := range row.Tags {
			if s, ok := v.(string); ok {
				point.Tags[k] = s
			}
		}
	}
	if len(row.Metadata) > 0 {
		point.Metadata = map[string]interface{}(row.Metadata)
	}
	return point
}
