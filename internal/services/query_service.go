package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// estimatedRowBytes is the rough per-row footprint used for the storage
// estimate in stats responses.
const estimatedRowBytes = 160

// RangeQuery is a read-path request: raw points, optionally reduced when
// Aggregation is set.
type RangeQuery struct {
	DeviceIDs   []string
	MetricNames []string
	Start       time.Time
	End         time.Time
	Aggregation AggregationType // empty = raw points
	IntervalSec int
	Limit       int
}

// RangeResult carries either raw points or bucketed aggregates.
type RangeResult struct {
	Points     []QueriedPoint    `json:"points,omitempty"`
	Aggregates []AggregatedValue `json:"aggregates,omitempty"`
}

// QueriedPoint is one raw point in a range response, with its device.
type QueriedPoint struct {
	DeviceID string              `json:"device_id"`
	Point    telemetry.DataPoint `json:"point"`
}

// DeviceStats summarizes one device's stored telemetry.
type DeviceStats struct {
	DeviceID             string    `json:"device_id"`
	PointCount           int64     `json:"point_count"`
	ActiveMetrics        []string  `json:"active_metrics"`
	FirstPoint           *time.Time `json:"first_point,omitempty"`
	LastPoint            *time.Time `json:"last_point,omitempty"`
	EstimatedStorageSize int64     `json:"estimated_storage_bytes"`
}

// ServiceStats summarizes the whole store.
type ServiceStats struct {
	TotalPoints          int64    `json:"total_points"`
	DeviceCount          int      `json:"device_count"`
	MetricCount          int64    `json:"metric_definitions"`
	RuleCount            int64    `json:"alert_rules"`
	ActiveAlerts         int64    `json:"active_alerts"`
	ActiveMetrics        []string `json:"active_metrics"`
	EstimatedStorageSize int64    `json:"estimated_storage_bytes"`
}

// QueryService serves the read path: range queries and stats.
type QueryService struct {
	db          *gorm.DB
	aggregation *AggregationService
}

// NewQueryService creates a new QueryService
func NewQueryService(db *gorm.DB, aggregation *AggregationService) *QueryService {
	return &QueryService{db: db, aggregation: aggregation}
}

// QueryRange returns raw points matching the query, or bucketed aggregates
// when an aggregation is requested. Aggregated queries require exactly one
// metric name.
func (s *QueryService) QueryRange(q RangeQuery) (*RangeResult, error) {
	if q.Aggregation != "" {
		if len(q.MetricNames) != 1 {
			return nil, fmt.Errorf("aggregated queries require exactly one metric_name, got %d", len(q.MetricNames))
		}
		deviceID := ""
		if len(q.DeviceIDs) == 1 {
			deviceID = q.DeviceIDs[0]
		}
		aggregates, err := s.aggregation.Aggregate(deviceID, q.MetricNames[0], q.Aggregation, q.IntervalSec, q.Start, q.End)
		if err != nil {
			return nil, err
		}
		return &RangeResult{Aggregates: aggregates}, nil
	}

	rows, err := database.QueryPoints(s.db, database.PointFilter{
		DeviceIDs:   q.DeviceIDs,
		MetricNames: q.MetricNames,
		Start:       q.Start,
		End:         q.End,
		Limit:       q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	result := &RangeResult{Points: make([]QueriedPoint, 0, len(rows))}
	for i := range rows {
		result.Points = append(result.Points, QueriedPoint{
			DeviceID: rows[i].DeviceID,
			Point:    rowToPoint(&rows[i]),
		})
	}
	return result, nil
}

// GetDeviceStats returns counts and active metrics for one device.
func (s *QueryService) GetDeviceStats(deviceID string) (*DeviceStats, error) {
	count, err := database.CountPoints(s.db, deviceID)
	if err != nil {
		return nil, err
	}
	metricNames, err := database.DistinctMetrics(s.db, deviceID)
	if err != nil {
		return nil, err
	}

	stats := &DeviceStats{
		DeviceID:             deviceID,
		PointCount:           count,
		ActiveMetrics:        metricNames,
		EstimatedStorageSize: count * estimatedRowBytes,
	}
	first, last, ok, err := database.PointTimeBounds(s.db, deviceID)
	if err != nil {
		return nil, err
	}
	if ok {
		stats.FirstPoint = &first
		stats.LastPoint = &last
	}
	return stats, nil
}

// GetServiceStats returns store-wide counts.
func (s *QueryService) GetServiceStats() (*ServiceStats, error) {
	total, err := database.CountPoints(s.db, "")
	if err != nil {
		return nil, err
	}
	devices, err := database.DistinctDevices(s.db)
	if err != nil {
		return nil, err
	}
	metricNames, err := database.DistinctMetrics(s.db, "")
	if err != nil {
		return nil, err
	}

	var metricCount, ruleCount, activeAlerts int64
	if err := s.db.Model(&database.MetricDefinition{}).Count(&metricCount).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&database.AlertRule{}).Count(&ruleCount).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&database.Alert{}).
		Where("status = ?", database.AlertStatusActive).Count(&activeAlerts).Error; err != nil {
		return nil, err
	}

	return &ServiceStats{
		TotalPoints:          total,
		DeviceCount:          len(devices),
		MetricCount:          metricCount,
		RuleCount:            ruleCount,
		ActiveAlerts:         activeAlerts,
		ActiveMetrics:        metricNames,
		EstimatedStorageSize: total * estimatedRowBytes,
	}, nil
}
