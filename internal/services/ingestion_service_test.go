package services

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/events"
	"github.com/fleetwatch/fleetwatch/internal/realtime"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

func TestIngestRequiresDevice(t *testing.T) {
	env := newTestEnv(t)

	result := env.ingestion.Ingest("", []telemetry.DataPoint{numericPoint("temperature", 20)})
	if result.Success {
		t.Error("expected failure for empty device id")
	}
	if result.FailedCount != 1 {
		t.Errorf("expected failed_count 1, got %d", result.FailedCount)
	}
}

func TestIngestEmptyBatch(t *testing.T) {
	env := newTestEnv(t)

	result := env.ingestion.Ingest("dev-1", nil)
	if !result.Success {
		t.Error("empty batch should succeed")
	}
	if result.TotalCount != 0 || result.IngestedCount != 0 {
		t.Errorf("unexpected counts: %+v", result)
	}
	if got := len(env.pub.EventsFor(events.SubjectDataReceived)); got != 0 {
		t.Errorf("empty batch must not emit data.received, got %d", got)
	}
}

func TestIngestBatch(t *testing.T) {
	env := newTestEnv(t)

	points := []telemetry.DataPoint{
		numericPoint("temperature", 21.5),
		numericPoint("humidity", 55),
		{
			Timestamp:  time.Now().UTC(),
			MetricName: "link_status",
			Value:      telemetry.StringValue("up"),
		},
	}
	result := env.ingestion.Ingest("dev-1", points)

	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if result.IngestedCount != 3 {
		t.Errorf("expected 3 ingested, got %d", result.IngestedCount)
	}

	count, err := database.CountPoints(env.db, "dev-1")
	if err != nil {
		t.Fatalf("CountPoints failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 rows, got %d", count)
	}

	recvd := env.pub.EventsFor(events.SubjectDataReceived)
	if len(recvd) != 1 {
		t.Fatalf("expected 1 data.received event, got %d", len(recvd))
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(recvd[0].Payload, &payload); err != nil {
		t.Fatalf("bad event payload: %v", err)
	}
	if payload["device_id"] != "dev-1" {
		t.Errorf("event device_id = %v", payload["device_id"])
	}
	if payload["distinct_metric_count"] != float64(3) {
		t.Errorf("event distinct_metric_count = %v", payload["distinct_metric_count"])
	}
	if payload["ingested_count"] != float64(3) {
		t.Errorf("event ingested_count = %v", payload["ingested_count"])
	}
}

func TestIngestPartialFailure(t *testing.T) {
	env := newTestEnv(t)

	points := []telemetry.DataPoint{
		numericPoint("temperature", 21.5),
		{Timestamp: time.Now().UTC(), Value: telemetry.NumericValue(1)}, // no metric name
		numericPoint("humidity", 55),
	}
	result := env.ingestion.Ingest("dev-1", points)

	if result.Success {
		t.Error("expected success=false with a failed point")
	}
	if result.IngestedCount != 2 {
		t.Errorf("expected 2 ingested, got %d", result.IngestedCount)
	}
	if result.FailedCount != 1 {
		t.Errorf("expected 1 failed, got %d", result.FailedCount)
	}
	if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "point 1:") {
		t.Errorf("expected error annotated with point index, got %v", result.Errors)
	}

	count, _ := database.CountPoints(env.db, "dev-1")
	if count != 2 {
		t.Errorf("valid points must still be written, got %d rows", count)
	}
}

func TestIngestAdvisoryWarnings(t *testing.T) {
	env := newTestEnv(t)

	if _, _, err := env.metrics.DefineMetric(&database.MetricDefinition{
		Name:     "battery",
		MinValue: floatPtr(0),
		MaxValue: floatPtr(100),
	}); err != nil {
		t.Fatalf("DefineMetric failed: %v", err)
	}

	points := []telemetry.DataPoint{
		numericPoint("battery", 150), // above max
		numericPoint("battery", -5),  // below min
		{
			Timestamp:  time.Now().UTC(),
			MetricName: "battery",
			Value:      telemetry.StringValue("full"), // type mismatch
		},
		numericPoint("battery", 80), // conforming
	}
	result := env.ingestion.Ingest("dev-1", points)

	// Definition violations are advisory: everything still lands.
	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	if result.IngestedCount != 4 {
		t.Errorf("expected 4 ingested, got %d", result.IngestedCount)
	}
	if len(result.Warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %d: %v", len(result.Warnings), result.Warnings)
	}
	if !strings.Contains(result.Warnings[0], "above max_value") {
		t.Errorf("warning 0: %s", result.Warnings[0])
	}
	if !strings.Contains(result.Warnings[1], "below min_value") {
		t.Errorf("warning 1: %s", result.Warnings[1])
	}
	if !strings.Contains(result.Warnings[2], "declares numeric") {
		t.Errorf("warning 2: %s", result.Warnings[2])
	}
}

func TestIngestUpsertsDuplicateKey(t *testing.T) {
	env := newTestEnv(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := telemetry.DataPoint{Timestamp: at, MetricName: "temperature", Value: telemetry.NumericValue(20)}
	second := telemetry.DataPoint{Timestamp: at, MetricName: "temperature", Value: telemetry.NumericValue(25)}

	env.ingestion.Ingest("dev-1", []telemetry.DataPoint{first})
	result := env.ingestion.Ingest("dev-1", []telemetry.DataPoint{second})
	if !result.Success {
		t.Fatalf("second write failed: %v", result.Errors)
	}

	count, _ := database.CountPoints(env.db, "dev-1")
	if count != 1 {
		t.Errorf("same (device, metric, timestamp) must upsert, got %d rows", count)
	}

	rows, err := database.QueryPoints(env.db, database.PointFilter{DeviceIDs: []string{"dev-1"}})
	if err != nil {
		t.Fatalf("QueryPoints failed: %v", err)
	}
	if len(rows) != 1 || rows[0].NumericValue == nil || *rows[0].NumericValue != 25 {
		t.Errorf("expected the later value to win, got %+v", rows)
	}
}

func TestIngestDrivesEvaluation(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.rules.CreateRule(&database.AlertRule{
		Name: "high-temp", MetricName: "temperature",
		Condition: database.ConditionGreaterThan, ThresholdValue: "80",
	}); err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	env.ingestion.Ingest("dev-1", []telemetry.DataPoint{numericPoint("temperature", 90)})

	count, err := env.alerts.CountActive()
	if err != nil {
		t.Fatalf("CountActive failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected ingestion to trigger the rule, got %d alerts", count)
	}
}

func TestIngestFansOut(t *testing.T) {
	env := newTestEnv(t)

	_, ch := env.fanout.Subscribe(realtime.SubscriptionFilter{DeviceIDs: []string{"dev-1"}})

	env.ingestion.Ingest("dev-1", []telemetry.DataPoint{numericPoint("temperature", 21)})
	env.ingestion.Ingest("dev-2", []telemetry.DataPoint{numericPoint("temperature", 22)})

	select {
	case d := <-ch:
		if d.DeviceID != "dev-1" {
			t.Errorf("delivery device = %s", d.DeviceID)
		}
		if d.Point.MetricName != "temperature" {
			t.Errorf("delivery metric = %s", d.Point.MetricName)
		}
	default:
		t.Fatal("expected a delivery for dev-1")
	}

	select {
	case d := <-ch:
		t.Errorf("unexpected delivery for %s", d.DeviceID)
	default:
	}
}

func TestIngestTimestampNormalizedToUTC(t *testing.T) {
	env := newTestEnv(t)
	loc := time.FixedZone("UTC+3", 3*3600)
	at := time.Date(2026, 3, 1, 15, 0, 0, 0, loc)

	env.ingestion.Ingest("dev-1", []telemetry.DataPoint{{
		Timestamp:  at,
		MetricName: "temperature",
		Value:      telemetry.NumericValue(20),
	}})

	rows, err := database.QueryPoints(env.db, database.PointFilter{DeviceIDs: []string{"dev-1"}})
	if err != nil {
		t.Fatalf("QueryPoints failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if !rows[0].Timestamp.Equal(at.UTC()) {
		t.Errorf("timestamp = %s, want %s", rows[0].Timestamp, at.UTC())
	}
}
