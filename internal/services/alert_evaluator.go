package services

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/events"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/notify"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// AlertEvaluator checks incoming points against the enabled alert rules for
// their metric. A match creates an active alert, bumps the rule's trigger
// stats, emits alert.triggered and dispatches the rule's notification
// channels. One failing rule never blocks the others.
type AlertEvaluator struct {
	rules      *RuleService
	alerts     *AlertService
	notifier   *events.Notifier
	dispatcher *notify.Dispatcher
}

// NewAlertEvaluator creates a new AlertEvaluator. dispatcher may be nil
// when no notification channels are configured.
func NewAlertEvaluator(rules *RuleService, alerts *AlertService, notifier *events.Notifier, dispatcher *notify.Dispatcher) *AlertEvaluator {
	return &AlertEvaluator{
		rules:      rules,
		alerts:     alerts,
		notifier:   notifier,
		dispatcher: dispatcher,
	}
}

// Check evaluates every enabled rule watching the point's metric. It is
// side-effecting and deliberately returns nothing: evaluation problems are
// logged, ingestion proceeds regardless.
func (e *AlertEvaluator) Check(deviceID string, point telemetry.DataPoint) {
	rules, err := e.rules.EnabledRulesForMetric(point.MetricName)
	if err != nil {
		log.Printf("Evaluator: failed to load rules for metric %s: %v", point.MetricName, err)
		return
	}

	now := time.Now().UTC()
	for i := range rules {
		rule := &rules[i]
		if err := e.checkRule(rule, deviceID, point, now); err != nil {
			log.Printf("Evaluator: rule %s (%s) failed: %v", rule.Name, rule.UUID, err)
		}
	}
}

func (e *AlertEvaluator) checkRule(rule *database.AlertRule, deviceID string, point telemetry.DataPoint, now time.Time) error {
	if !rule.AppliesToDevice(deviceID) {
		return nil
	}
	// Cooldown: a rule that just fired stays quiet for cooldown_minutes,
	// otherwise a continuously violating metric storms one alert per point.
	if rule.InCooldown(now) {
		return nil
	}
	if !EvaluateCondition(rule.Condition, point.Value, rule.ThresholdValue) {
		return nil
	}

	alert := &database.Alert{
		RuleID:         rule.ID,
		RuleUUID:       rule.UUID,
		RuleName:       rule.Name,
		DeviceID:       deviceID,
		MetricName:     point.MetricName,
		Level:          rule.Level,
		Status:         database.AlertStatusActive,
		CurrentValue:   point.Value.String(),
		ThresholdValue: rule.ThresholdValue,
		TriggeredAt:    now,
		Message: fmt.Sprintf("%s: %s %s %s (current: %s) on device %s",
			rule.Name, point.MetricName, rule.Condition, rule.ThresholdValue,
			point.Value.String(), deviceID),
		Metadata: database.JSONB{
			"trigger_value": point.Value.String(),
			"value_type":    string(point.Value.Kind()),
		},
		Tags: rule.Tags,
	}
	if rule.AutoResolves() {
		deadline := now.Add(time.Duration(rule.AutoResolveTimeout) * time.Second)
		alert.AutoResolveAt = &deadline
	}

	if err := e.alerts.CreateAlert(alert); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	if err := e.rules.RecordTrigger(rule.ID, now); err != nil {
		return fmt.Errorf("failed to update rule stats: %w", err)
	}
	// Keep the in-memory copy current so later points in the same batch
	// observe the cooldown without a re-read.
	rule.TotalTriggers++
	rule.LastTriggered = &now

	metrics.AlertsTriggered.WithLabelValues(string(rule.Level)).Inc()
	e.notifier.AlertTriggered(alert)
	if e.dispatcher != nil && len(rule.NotificationChannels) > 0 {
		e.dispatcher.Dispatch(rule.NotificationChannels, alert)
	}
	return nil
}

// EvaluateCondition applies a rule condition to a point value. When the
// value is numeric and the threshold parses as a float the comparison is
// numeric; otherwise == and != compare raw representations and the ordering
// conditions are always false.
func EvaluateCondition(cond database.AlertCondition, value telemetry.Value, threshold string) bool {
	if num, ok := value.Float(); ok {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			switch cond {
			case database.ConditionGreaterThan:
				return num > t
			case database.ConditionLessThan:
				return num < t
			case database.ConditionEqual:
				return num == t
			case database.ConditionNotEqual:
				return num != t
			default:
				return false
			}
		}
	}

	switch cond {
	case database.ConditionEqual:
		return value.EqualsRaw(threshold)
	case database.ConditionNotEqual:
		return !value.EqualsRaw(threshold)
	default:
		// Ordering comparisons are meaningless without numbers.
		return false
	}
}
