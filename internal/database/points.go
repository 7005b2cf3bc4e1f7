package database

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PointFilter narrows time-series queries. Empty slices mean "all"; zero
// times mean "unbounded". Limit of 0 falls back to the caller's cap.
type PointFilter struct {
	DeviceIDs   []string
	MetricNames []string
	Start       time.Time
	End         time.Time
	Limit       int
}

// UpsertPoint writes a telemetry row, overwriting any existing row with the
// same (device_id, metric_name, timestamp) key.
func UpsertPoint(db *gorm.DB, point *TelemetryPoint) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "device_id"},
			{Name: "metric_name"},
			{Name: "timestamp"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"value_type", "numeric_value", "string_value", "bool_value",
			"json_value", "unit", "tags", "metadata",
		}),
	}).Create(point).Error
}

// QueryPoints returns rows matching the filter, ordered by timestamp
// ascending.
func QueryPoints(db *gorm.DB, filter PointFilter) ([]TelemetryPoint, error) {
	q := db.Model(&TelemetryPoint{})
	if len(filter.DeviceIDs) > 0 {
		q = q.Where("device_id IN ?", filter.DeviceIDs)
	}
	if len(filter.MetricNames) > 0 {
		q = q.Where("metric_name IN ?", filter.MetricNames)
	}
	if !filter.Start.IsZero() {
		q = q.Where("timestamp >= ?", filter.Start)
	}
	if !filter.End.IsZero() {
		q = q.Where("timestamp <= ?", filter.End)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var points []TelemetryPoint
	err := q.Order("timestamp ASC").Find(&points).Error
	return points, err
}

// CountPoints returns the number of stored rows for a device; an empty
// deviceID counts the whole table.
func CountPoints(db *gorm.DB, deviceID string) (int64, error) {
	q := db.Model(&TelemetryPoint{})
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

// DistinctMetrics returns the metric names a device has reported; an empty
// deviceID spans all devices.
func DistinctMetrics(db *gorm.DB, deviceID string) ([]string, error) {
	q := db.Model(&TelemetryPoint{}).Distinct("metric_name")
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	var names []string
	err := q.Order("metric_name ASC").Pluck("metric_name", &names).Error
	return names, err
}

// DistinctDevices returns all device ids present in the store.
func DistinctDevices(db *gorm.DB) ([]string, error) {
	var ids []string
	err := db.Model(&TelemetryPoint{}).Distinct("device_id").
		Order("device_id ASC").Pluck("device_id", &ids).Error
	return ids, err
}

// PointTimeBounds returns the earliest and latest timestamps stored for a
// device. ok is false when the device has no rows.
func PointTimeBounds(db *gorm.DB, deviceID string) (first, last time.Time, ok bool, err error) {
	var bounds struct {
		First *time.Time
		Last  *time.Time
	}
	q := db.Model(&TelemetryPoint{}).
		Select("MIN(timestamp) AS first, MAX(timestamp) AS last")
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	if err = q.Scan(&bounds).Error; err != nil {
		return
	}
	if bounds.First == nil || bounds.Last == nil {
		return
	}
	return *bounds.First, *bounds.Last, true, nil
}

// PurgePointsBefore deletes rows for a metric older than cutoff and returns
// the number removed. Used by the retention sweep.
func PurgePointsBefore(db *gorm.DB, metricName string, cutoff time.Time) (int64, error) {
	res := db.Where("metric_name = ? AND timestamp < ?", metricName, cutoff).
		Delete(&TelemetryPoint{})
	return res.RowsAffected, res.Error
}
