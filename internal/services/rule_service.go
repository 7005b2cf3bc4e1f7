package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/events"
)

// RuleService stores alert rule definitions and their trigger statistics.
type RuleService struct {
	db       *gorm.DB
	notifier *events.Notifier
}

// NewRuleService creates a new RuleService
func NewRuleService(db *gorm.DB, notifier *events.Notifier) *RuleService {
	return &RuleService{db: db, notifier: notifier}
}

// CreateRule stores a new alert rule and emits alert.rule.created.
func (s *RuleService) CreateRule(rule *database.AlertRule) (*database.AlertRule, error) {
	if rule.Name == "" {
		return nil, errors.New("rule name is required")
	}
	if rule.MetricName == "" {
		return nil, errors.New("metric_name is required")
	}
	if !database.ValidAlertCondition(rule.Condition) {
		return nil, fmt.Errorf("unsupported condition %q", rule.Condition)
	}

	applyRuleDefaults(rule)
	if err := s.db.Create(rule).Error; err != nil {
		return nil, err
	}

	s.notifier.RuleCreated(rule)
	return rule, nil
}

// EnsureRule creates the rule unless one with the same name already exists.
// Used by startup seeding; returns the stored rule either way.
func (s *RuleService) EnsureRule(rule *database.AlertRule) (*database.AlertRule, error) {
	var existing database.AlertRule
	err := s.db.Where("name = ?", rule.Name).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return s.CreateRule(rule)
}

// GetRule retrieves a rule by external id.
func (s *RuleService) GetRule(ruleUUID string) (*database.AlertRule, error) {
	var rule database.AlertRule
	if err := s.db.Where("uuid = ?", ruleUUID).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules returns all rules ordered by creation time.
func (s *RuleService) ListRules() ([]database.AlertRule, error) {
	var rules []database.AlertRule
	if err := s.db.Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// EnabledRulesForMetric returns every enabled rule watching metricName.
// Disabled rules are filtered at the store so the evaluator never sees them.
func (s *RuleService) EnabledRulesForMetric(metricName string) ([]database.AlertRule, error) {
	var rules []database.AlertRule
	err := s.db.Where("metric_name = ? AND enabled = ?", metricName, true).
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// UpdateRule applies explicit updates to a rule.
func (s *RuleService) UpdateRule(ruleUUID string, updates map[string]interface{}) (*database.AlertRule, error) {
	delete(updates, "uuid")
	delete(updates, "total_triggers")
	delete(updates, "last_triggered")

	res := s.db.Model(&database.AlertRule{}).Where("uuid = ?", ruleUUID).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return s.GetRule(ruleUUID)
}

// DeleteRule removes a rule. Alerts it created keep their denormalized
// snapshot of the rule fields.
func (s *RuleService) DeleteRule(ruleUUID string) error {
	res := s.db.Where("uuid = ?", ruleUUID).Delete(&database.AlertRule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecordTrigger bumps a rule's trigger statistics after a match. The counter
// increment is pushed to the store so concurrent evaluations stay atomic.
func (s *RuleService) RecordTrigger(ruleID uint, at time.Time) error {
	return s.db.Model(&database.AlertRule{}).Where("id = ?", ruleID).
		Updates(map[string]interface{}{
			"total_triggers": gorm.Expr("total_triggers + 1"),
			"last_triggered": at,
		}).Error
}

// DisableDeviceRules flips enabled=false on every enabled rule whose device
// scope names deviceID and returns the count affected. Rules scoped to all
// devices (empty device_ids) are left alone. Called when a device.deleted
// event arrives from the bus.
func (s *RuleService) DisableDeviceRules(deviceID string) (int64, error) {
	// Device scopes are JSON lists; membership is checked in Go rather
	// than with dialect-specific JSON operators.
	var rules []database.AlertRule
	if err := s.db.Where("enabled = ?", true).Find(&rules).Error; err != nil {
		return 0, err
	}

	var ids []uint
	for _, rule := range rules {
		if rule.DeviceIDs.Contains(deviceID) {
			ids = append(ids, rule.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := s.db.Model(&database.AlertRule{}).Where("id IN ?", ids).
		Update("enabled", false)
	return res.RowsAffected, res.Error
}

func applyRuleDefaults(rule *database.AlertRule) {
	if rule.EvaluationWindow == 0 {
		rule.EvaluationWindow = 300
	}
	if rule.TriggerCount == 0 {
		rule.TriggerCount = 1
	}
	if rule.Level == "" {
		rule.Level = database.LevelWarning
	}
	if rule.CooldownMinutes == 0 {
		rule.CooldownMinutes = 15
	}
	if rule.AutoResolveTimeout == 0 {
		rule.AutoResolveTimeout = 3600
	}
	// Pointer flags so an explicit false survives the INSERT; a gorm
	// default tag would drop the zero value and store true.
	if rule.Enabled == nil {
		rule.Enabled = boolPtr(true)
	}
	if rule.AutoResolve == nil {
		rule.AutoResolve = boolPtr(true)
	}
	if rule.DeviceIDs == nil {
		rule.DeviceIDs = database.StringList{}
	}
	if rule.DeviceGroups == nil {
		rule.DeviceGroups = database.StringList{}
	}
	if rule.NotificationChannels == nil {
		rule.NotificationChannels = database.StringList{}
	}
	if rule.DeviceFilters == nil {
		rule.DeviceFilters = database.JSONB{}
	}
	if rule.Tags == nil {
		rule.Tags = database.StringList{}
	}
}

func boolPtr(b bool) *bool {
	return &b
}
