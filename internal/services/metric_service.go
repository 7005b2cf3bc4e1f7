package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/events"
)

// MetricService is the metric catalog: named metric definitions with
// declared types, bounds and retention.
type MetricService struct {
	db       *gorm.DB
	notifier *events.Notifier
}

// NewMetricService creates a new MetricService
func NewMetricService(db *gorm.DB, notifier *events.Notifier) *MetricService {
	return &MetricService{db: db, notifier: notifier}
}

// DefineMetric creates a metric definition. Creation is idempotent by name:
// redefining an existing name returns the stored definition unchanged and
// reports created=false.
func (s *MetricService) DefineMetric(def *database.MetricDefinition) (*database.MetricDefinition, bool, error) {
	if def.Name == "" {
		return nil, false, errors.New("metric name is required")
	}
	if err := validateBounds(def); err != nil {
		return nil, false, err
	}

	var existing database.MetricDefinition
	err := s.db.Where("name = ?", def.Name).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	applyMetricDefaults(def)
	if err := s.db.Create(def).Error; err != nil {
		// Lost a create race: another caller defined the name first.
		if err2 := s.db.Where("name = ?", def.Name).First(&existing).Error; err2 == nil {
			return &existing, false, nil
		}
		return nil, false, err
	}

	s.notifier.MetricDefined(def)
	return def, true, nil
}

// GetMetric retrieves a definition by external id.
func (s *MetricService) GetMetric(metricUUID string) (*database.MetricDefinition, error) {
	var def database.MetricDefinition
	if err := s.db.Where("uuid = ?", metricUUID).First(&def).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

// GetMetricByName retrieves a definition by its unique name.
func (s *MetricService) GetMetricByName(name string) (*database.MetricDefinition, error) {
	var def database.MetricDefinition
	if err := s.db.Where("name = ?", name).First(&def).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

// ListMetrics returns all metric definitions ordered by name.
func (s *MetricService) ListMetrics() ([]database.MetricDefinition, error) {
	var defs []database.MetricDefinition
	if err := s.db.Order("name ASC").Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

// UpdateMetric applies explicit updates to a definition. The name is
// immutable.
func (s *MetricService) UpdateMetric(metricUUID string, updates map[string]interface{}) (*database.MetricDefinition, error) {
	delete(updates, "name")
	delete(updates, "uuid")

	res := s.db.Model(&database.MetricDefinition{}).Where("uuid = ?", metricUUID).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return s.GetMetric(metricUUID)
}

// DeleteMetric removes a definition. Historical telemetry rows are kept:
// catalog deletion does not cascade into the time series.
func (s *MetricService) DeleteMetric(metricUUID string) error {
	res := s.db.Where("uuid = ?", metricUUID).Delete(&database.MetricDefinition{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func applyMetricDefaults(def *database.MetricDefinition) {
	if def.DataType == "" {
		def.DataType = database.DataTypeNumeric
	}
	if def.MetricType == "" {
		def.MetricType = database.MetricTypeGauge
	}
	if def.RetentionDays == 0 {
		def.RetentionDays = 90
	}
	if def.AggregationInterval == 0 {
		def.AggregationInterval = 60
	}
	if def.Tags == nil {
		def.Tags = database.StringList{}
	}
	if def.Metadata == nil {
		def.Metadata = database.JSONB{}
	}
}

func validateBounds(def *database.MetricDefinition) error {
	if def.RetentionDays < 0 || def.RetentionDays > 3650 {
		return fmt.Errorf("retention_days must be between 1 and 3650, got %d", def.RetentionDays)
	}
	if def.MinValue != nil && def.MaxValue != nil && *def.MinValue > *def.MaxValue {
		return fmt.Errorf("min_value %v exceeds max_value %v", *def.MinValue, *def.MaxValue)
	}
	if (def.MinValue != nil || def.MaxValue != nil) &&
		def.DataType != "" && def.DataType != database.DataTypeNumeric {
		return fmt.Errorf("bounds are only valid for numeric metrics, data type is %s", def.DataType)
	}
	return nil
}
