package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/events"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
)

// AlertFilter narrows alert listings. Empty fields match everything.
type AlertFilter struct {
	DeviceID string
	Status   database.AlertStatus
	Level    database.AlertLevel
	Limit    int
	Offset   int
}

func (f AlertFilter) apply(q *gorm.DB) *gorm.DB {
	if f.DeviceID != "" {
		q = q.Where("device_id = ?", f.DeviceID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Level != "" {
		q = q.Where("level = ?", f.Level)
	}
	return q
}

// AlertService stores alert instances and drives their lifecycle:
// active -> acknowledged/resolved. Only the evaluator creates alerts.
type AlertService struct {
	db       *gorm.DB
	notifier *events.Notifier
}

// NewAlertService creates a new AlertService
func NewAlertService(db *gorm.DB, notifier *events.Notifier) *AlertService {
	return &AlertService{db: db, notifier: notifier}
}

// CreateAlert stores a freshly triggered alert.
func (s *AlertService) CreateAlert(alert *database.Alert) error {
	if alert.Status == "" {
		alert.Status = database.AlertStatusActive
	}
	if alert.AffectedDevicesCount == 0 {
		alert.AffectedDevicesCount = 1
	}
	if alert.Tags == nil {
		alert.Tags = database.StringList{}
	}
	if alert.Metadata == nil {
		alert.Metadata = database.JSONB{}
	}
	return s.db.Create(alert).Error
}

// GetAlert retrieves an alert by external id.
func (s *AlertService) GetAlert(alertUUID string) (*database.Alert, error) {
	var alert database.Alert
	if err := s.db.Where("uuid = ?", alertUUID).First(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

// ListAlerts returns alerts matching the filter, newest first.
func (s *AlertService) ListAlerts(filter AlertFilter) ([]database.Alert, error) {
	q := filter.apply(s.db.Model(&database.Alert{}))
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var alerts []database.Alert
	err := q.Order("triggered_at DESC").Find(&alerts).Error
	return alerts, err
}

// CountAlerts returns the number of alerts matching the filter.
func (s *AlertService) CountAlerts(filter AlertFilter) (int64, error) {
	var count int64
	err := filter.apply(s.db.Model(&database.Alert{})).Count(&count).Error
	return count, err
}

// CountActive returns the number of alerts still in the active state.
func (s *AlertService) CountActive() (int64, error) {
	var count int64
	err := s.db.Model(&database.Alert{}).
		Where("status = ?", database.AlertStatusActive).Count(&count).Error
	return count, err
}

// Acknowledge marks an active alert as acknowledged by an operator.
func (s *AlertService) Acknowledge(alertUUID, ackedBy string) (*database.Alert, error) {
	alert, err := s.GetAlert(alertUUID)
	if err != nil {
		return nil, err
	}
	if alert.Status != database.AlertStatusActive {
		return nil, fmt.Errorf("alert %s is %s, only active alerts can be acknowledged", alertUUID, alert.Status)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":          database.AlertStatusAcknowledged,
		"acknowledged_at": now,
	}
	if err := s.db.Model(alert).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetAlert(alertUUID)
}

// Resolve closes an alert and emits alert.resolved. resolvedBy records the
// origin: an operator name or "auto" for the sweep.
func (s *AlertService) Resolve(alertUUID, resolvedBy string) (*database.Alert, error) {
	alert, err := s.GetAlert(alertUUID)
	if err != nil {
		return nil, err
	}
	if alert.Status == database.AlertStatusResolved {
		return alert, nil
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      database.AlertStatusResolved,
		"resolved_at": now,
	}
	if err := s.db.Model(alert).Updates(updates).Error; err != nil {
		return nil, err
	}

	resolved, err := s.GetAlert(alertUUID)
	if err != nil {
		return nil, err
	}
	s.notifier.AlertResolved(resolved, resolvedBy)
	metrics.AlertsResolved.WithLabelValues(resolvedBy).Inc()
	return resolved, nil
}

// ExpiredAutoResolve returns active alerts whose auto_resolve_at deadline
// has passed. The sweep job resolves them one by one.
func (s *AlertService) ExpiredAutoResolve(now time.Time) ([]database.Alert, error) {
	var alerts []database.Alert
	err := s.db.Where("status = ? AND auto_resolve_at IS NOT NULL AND auto_resolve_at < ?",
		database.AlertStatusActive, now).Find(&alerts).Error
	return alerts, err
}
