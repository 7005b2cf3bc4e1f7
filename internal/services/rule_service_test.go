package services

import (
	"testing"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/events"
)

func TestCreateRuleAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)

	rule, err := env.rules.CreateRule(&database.AlertRule{
		Name:           "high-temp",
		MetricName:     "temperature",
		Condition:      database.ConditionGreaterThan,
		ThresholdValue: "80",
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if rule.EvaluationWindow != 300 {
		t.Errorf("expected default evaluation window 300, got %d", rule.EvaluationWindow)
	}
	if rule.TriggerCount != 1 {
		t.Errorf("expected default trigger count 1, got %d", rule.TriggerCount)
	}
	if rule.Level != database.LevelWarning {
		t.Errorf("expected default level warning, got %s", rule.Level)
	}
	if rule.CooldownMinutes != 15 {
		t.Errorf("expected default cooldown 15, got %d", rule.CooldownMinutes)
	}
	if rule.AutoResolveTimeout != 3600 {
		t.Errorf("expected default auto resolve timeout 3600, got %d", rule.AutoResolveTimeout)
	}
	if rule.UUID == "" {
		t.Error("expected UUID to be assigned")
	}

	if got := len(env.pub.EventsFor(events.SubjectRuleCreated)); got != 1 {
		t.Errorf("expected 1 alert.rule.created event, got %d", got)
	}
}

func TestCreateRuleValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		rule database.AlertRule
	}{
		{"missing name", database.AlertRule{MetricName: "m", Condition: database.ConditionGreaterThan}},
		{"missing metric", database.AlertRule{Name: "r", Condition: database.ConditionGreaterThan}},
		{"bad condition", database.AlertRule{Name: "r2", MetricName: "m", Condition: ">="}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			if _, err := env.rules.CreateRule(&rule); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestCreateRuleStoresExplicitFalseFlags(t *testing.T) {
	env := newTestEnv(t)

	off := false
	rule, err := env.rules.CreateRule(&database.AlertRule{
		Name:           "created-disabled",
		MetricName:     "cpu",
		Condition:      database.ConditionGreaterThan,
		ThresholdValue: "90",
		Enabled:        &off,
		AutoResolve:    &off,
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	stored, err := env.rules.GetRule(rule.UUID)
	if err != nil {
		t.Fatalf("GetRule failed: %v", err)
	}
	if stored.IsEnabled() {
		t.Error("rule created disabled must stay disabled after the insert")
	}
	if stored.AutoResolves() {
		t.Error("rule created with auto_resolve=false must stay opted out")
	}

	rules, err := env.rules.EnabledRulesForMetric("cpu")
	if err != nil {
		t.Fatalf("EnabledRulesForMetric failed: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("disabled rule must not be evaluated, got %d rules", len(rules))
	}
}

func TestEnsureRuleIdempotent(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.rules.EnsureRule(&database.AlertRule{
		Name:           "seeded",
		MetricName:     "temperature",
		Condition:      database.ConditionGreaterThan,
		ThresholdValue: "80",
	})
	if err != nil {
		t.Fatalf("EnsureRule failed: %v", err)
	}

	second, err := env.rules.EnsureRule(&database.AlertRule{
		Name:           "seeded",
		MetricName:     "other_metric",
		Condition:      database.ConditionLessThan,
		ThresholdValue: "0",
	})
	if err != nil {
		t.Fatalf("second EnsureRule failed: %v", err)
	}
	if second.UUID != first.UUID {
		t.Errorf("expected existing rule returned, got %s want %s", second.UUID, first.UUID)
	}
	if second.MetricName != "temperature" {
		t.Errorf("stored rule changed: metric %s", second.MetricName)
	}

	rules, err := env.rules.ListRules()
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	if len(rules) != 1 {
		t.Errorf("expected 1 rule, got %d", len(rules))
	}
}

func TestEnabledRulesForMetricSkipsDisabled(t *testing.T) {
	env := newTestEnv(t)

	active, err := env.rules.CreateRule(&database.AlertRule{
		Name: "active", MetricName: "cpu", Condition: database.ConditionGreaterThan, ThresholdValue: "90",
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	disabled, err := env.rules.CreateRule(&database.AlertRule{
		Name: "disabled", MetricName: "cpu", Condition: database.ConditionGreaterThan, ThresholdValue: "50",
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if _, err := env.rules.UpdateRule(disabled.UUID, map[string]interface{}{"enabled": false}); err != nil {
		t.Fatalf("UpdateRule failed: %v", err)
	}
	if _, err := env.rules.CreateRule(&database.AlertRule{
		Name: "other-metric", MetricName: "memory", Condition: database.ConditionGreaterThan, ThresholdValue: "90",
	}); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	rules, err := env.rules.EnabledRulesForMetric("cpu")
	if err != nil {
		t.Fatalf("EnabledRulesForMetric failed: %v", err)
	}
	if len(rules) != 1 || rules[0].UUID != active.UUID {
		t.Errorf("expected only the enabled cpu rule, got %d rules", len(rules))
	}
}

func TestUpdateRuleProtectsStats(t *testing.T) {
	env := newTestEnv(t)

	rule, err := env.rules.CreateRule(&database.AlertRule{
		Name: "stats", MetricName: "cpu", Condition: database.ConditionGreaterThan, ThresholdValue: "90",
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	if err := env.rules.RecordTrigger(rule.ID, time.Now().UTC()); err != nil {
		t.Fatalf("RecordTrigger failed: %v", err)
	}

	updated, err := env.rules.UpdateRule(rule.UUID, map[string]interface{}{
		"threshold_value": "95",
		"total_triggers":  999,
		"uuid":            "hijacked",
	})
	if err != nil {
		t.Fatalf("UpdateRule failed: %v", err)
	}
	if updated.ThresholdValue != "95" {
		t.Errorf("threshold not updated: %s", updated.ThresholdValue)
	}
	if updated.TotalTriggers != 1 {
		t.Errorf("total_triggers must not be writable, got %d", updated.TotalTriggers)
	}
	if updated.UUID != rule.UUID {
		t.Errorf("uuid must not be writable, got %s", updated.UUID)
	}
}

func TestRecordTriggerIncrements(t *testing.T) {
	env := newTestEnv(t)

	rule, err := env.rules.CreateRule(&database.AlertRule{
		Name: "counter", MetricName: "cpu", Condition: database.ConditionGreaterThan, ThresholdValue: "90",
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	at := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := env.rules.RecordTrigger(rule.ID, at); err != nil {
			t.Fatalf("RecordTrigger failed: %v", err)
		}
	}

	stored, err := env.rules.GetRule(rule.UUID)
	if err != nil {
		t.Fatalf("GetRule failed: %v", err)
	}
	if stored.TotalTriggers != 3 {
		t.Errorf("expected 3 triggers, got %d", stored.TotalTriggers)
	}
	if stored.LastTriggered == nil {
		t.Error("expected last_triggered to be set")
	}
}

func TestDisableDeviceRulesScopedOnly(t *testing.T) {
	env := newTestEnv(t)

	scoped, err := env.rules.CreateRule(&database.AlertRule{
		Name: "scoped", MetricName: "cpu", Condition: database.ConditionGreaterThan,
		ThresholdValue: "90", DeviceIDs: database.StringList{"dev-1", "dev-2"},
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	global, err := env.rules.CreateRule(&database.AlertRule{
		Name: "global", MetricName: "cpu", Condition: database.ConditionGreaterThan, ThresholdValue: "95",
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}
	other, err := env.rules.CreateRule(&database.AlertRule{
		Name: "other-device", MetricName: "cpu", Condition: database.ConditionGreaterThan,
		ThresholdValue: "99", DeviceIDs: database.StringList{"dev-9"},
	})
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	count, err := env.rules.DisableDeviceRules("dev-1")
	if err != nil {
		t.Fatalf("DisableDeviceRules failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 rule disabled, got %d", count)
	}

	for _, tc := range []struct {
		uuid    string
		enabled bool
	}{
		{scoped.UUID, false},
		{global.UUID, true},
		{other.UUID, true},
	} {
		stored, err := env.rules.GetRule(tc.uuid)
		if err != nil {
			t.Fatalf("GetRule failed: %v", err)
		}
		if stored.IsEnabled() != tc.enabled {
			t.Errorf("rule %s: expected enabled=%v, got %v", stored.Name, tc.enabled, stored.IsEnabled())
		}
	}
}

func TestDeleteRuleNotFound(t *testing.T) {
	env := newTestEnv(t)

	if err := env.rules.DeleteRule("no-such-uuid"); err == nil {
		t.Error("expected error for unknown rule")
	}
}
