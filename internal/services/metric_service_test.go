package services

import (
	"testing"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/events"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

func floatPtr(f float64) *float64 { return &f }

func TestDefineMetricAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)

	def, created, err := env.metrics.DefineMetric(&database.MetricDefinition{Name: "temperature"})
	if err != nil {
		t.Fatalf("DefineMetric failed: %v", err)
	}
	if !created {
		t.Error("expected created=true for a new metric")
	}
	if def.DataType != database.DataTypeNumeric {
		t.Errorf("expected default data type numeric, got %s", def.DataType)
	}
	if def.MetricType != database.MetricTypeGauge {
		t.Errorf("expected default metric type gauge, got %s", def.MetricType)
	}
	if def.RetentionDays != 90 {
		t.Errorf("expected default retention 90, got %d", def.RetentionDays)
	}
	if def.AggregationInterval != 60 {
		t.Errorf("expected default aggregation interval 60, got %d", def.AggregationInterval)
	}
	if def.UUID == "" {
		t.Error("expected UUID to be assigned")
	}

	if got := len(env.pub.EventsFor(events.SubjectMetricDefined)); got != 1 {
		t.Errorf("expected 1 metric.defined event, got %d", got)
	}
}

func TestDefineMetricIdempotentByName(t *testing.T) {
	env := newTestEnv(t)

	first, created, err := env.metrics.DefineMetric(&database.MetricDefinition{
		Name:     "cpu_usage",
		MinValue: floatPtr(0),
		MaxValue: floatPtr(100),
	})
	if err != nil || !created {
		t.Fatalf("first DefineMetric failed: created=%v err=%v", created, err)
	}

	// Redefining the same name with different parameters must not change
	// the stored definition.
	second, created, err := env.metrics.DefineMetric(&database.MetricDefinition{
		Name:          "cpu_usage",
		DataType:      database.DataTypeString,
		RetentionDays: 7,
	})
	if err != nil {
		t.Fatalf("second DefineMetric failed: %v", err)
	}
	if created {
		t.Error("expected created=false for an existing name")
	}
	if second.UUID != first.UUID {
		t.Errorf("expected stored definition returned, got UUID %s want %s", second.UUID, first.UUID)
	}
	if second.DataType != database.DataTypeNumeric {
		t.Errorf("stored definition changed: data type %s", second.DataType)
	}
	if second.MaxValue == nil || *second.MaxValue != 100 {
		t.Errorf("stored definition changed: max_value %v", second.MaxValue)
	}

	if got := len(env.pub.EventsFor(events.SubjectMetricDefined)); got != 1 {
		t.Errorf("redefinition must not emit another event, got %d", got)
	}
}

func TestDefineMetricValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		def  database.MetricDefinition
	}{
		{"missing name", database.MetricDefinition{}},
		{"retention too long", database.MetricDefinition{Name: "m1", RetentionDays: 4000}},
		{"negative retention", database.MetricDefinition{Name: "m2", RetentionDays: -1}},
		{"min above max", database.MetricDefinition{Name: "m3", MinValue: floatPtr(10), MaxValue: floatPtr(5)}},
		{"bounds on string metric", database.MetricDefinition{Name: "m4", DataType: database.DataTypeString, MinValue: floatPtr(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := tt.def
			if _, _, err := env.metrics.DefineMetric(&def); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestUpdateMetricNameImmutable(t *testing.T) {
	env := newTestEnv(t)

	def, _, err := env.metrics.DefineMetric(&database.MetricDefinition{Name: "humidity"})
	if err != nil {
		t.Fatalf("DefineMetric failed: %v", err)
	}

	updated, err := env.metrics.UpdateMetric(def.UUID, map[string]interface{}{
		"name":           "renamed",
		"description":    "relative humidity",
		"retention_days": 30,
	})
	if err != nil {
		t.Fatalf("UpdateMetric failed: %v", err)
	}
	if updated.Name != "humidity" {
		t.Errorf("name should be immutable, got %s", updated.Name)
	}
	if updated.Description != "relative humidity" {
		t.Errorf("description not updated: %s", updated.Description)
	}
	if updated.RetentionDays != 30 {
		t.Errorf("retention_days not updated: %d", updated.RetentionDays)
	}
}

func TestUpdateMetricNotFound(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.metrics.UpdateMetric("no-such-uuid", map[string]interface{}{"description": "x"}); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestDeleteMetricKeepsTelemetry(t *testing.T) {
	env := newTestEnv(t)

	def, _, err := env.metrics.DefineMetric(&database.MetricDefinition{Name: "voltage"})
	if err != nil {
		t.Fatalf("DefineMetric failed: %v", err)
	}

	result := env.ingestion.Ingest("device-1", []telemetry.DataPoint{{
		Timestamp:  time.Now().UTC(),
		MetricName: "voltage",
		Value:      telemetry.NumericValue(12.4),
	}})
	if result.IngestedCount != 1 {
		t.Fatalf("expected 1 ingested point, got %d", result.IngestedCount)
	}

	if err := env.metrics.DeleteMetric(def.UUID); err != nil {
		t.Fatalf("DeleteMetric failed: %v", err)
	}
	if _, err := env.metrics.GetMetricByName("voltage"); err == nil {
		t.Error("definition should be gone")
	}

	count, err := database.CountPoints(env.db, "device-1")
	if err != nil {
		t.Fatalf("CountPoints failed: %v", err)
	}
	if count != 1 {
		t.Errorf("telemetry rows must survive catalog deletion, got %d", count)
	}
}

func TestListMetricsOrderedByName(t *testing.T) {
	env := newTestEnv(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, _, err := env.metrics.DefineMetric(&database.MetricDefinition{Name: name}); err != nil {
			t.Fatalf("DefineMetric(%s) failed: %v", name, err)
		}
	}

	defs, err := env.metrics.ListMetrics()
	if err != nil {
		t.Fatalf("ListMetrics failed: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(defs) != len(want) {
		t.Fatalf("expected %d metrics, got %d", len(want), len(defs))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, defs[i].Name)
		}
	}
}
