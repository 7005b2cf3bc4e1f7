package events

import (
	"log"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
)

// Published subjects. These names are the wire contract with downstream
// consumers (notification service, audit, dashboards).
const (
	SubjectDataReceived   = "telemetry.data.received"
	SubjectMetricDefined  = "metric.defined"
	SubjectRuleCreated    = "alert.rule.created"
	SubjectAlertTriggered = "alert.triggered"
	SubjectAlertResolved  = "alert.resolved"
	SubjectDeviceDeleted  = "device.deleted"
)

// Notifier emits domain events. Every method is best-effort: a failed
// publish is logged and swallowed so the pipeline never blocks on the bus.
type Notifier struct {
	pub Publisher
}

// NewNotifier creates a notifier over any publisher. A nil publisher
// disables emission entirely (tests, bus-less deployments).
func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) emit(subject string, payload map[string]interface{}) {
	if n == nil || n.pub == nil {
		return
	}
	if err := n.pub.Publish(subject, payload); err != nil {
		log.Printf("Notifier: failed to publish %s: %v", subject, err)
		return
	}
	metrics.EventsPublished.WithLabelValues(subject).Inc()
}

// DataReceived reports one completed ingestion batch.
func (n *Notifier) DataReceived(deviceID string, distinctMetrics, ingestedCount int) {
	n.emit(SubjectDataReceived, map[string]interface{}{
		"device_id":             deviceID,
		"distinct_metric_count": distinctMetrics,
		"ingested_count":        ingestedCount,
		"timestamp":             time.Now().UTC(),
	})
}

// MetricDefined reports a newly created metric definition.
func (n *Notifier) MetricDefined(def *database.MetricDefinition) {
	n.emit(SubjectMetricDefined, map[string]interface{}{
		"metric_id": def.UUID,
		"name":      def.Name,
		"data_type": def.DataType,
		"timestamp": time.Now().UTC(),
	})
}

// RuleCreated reports a newly created alert rule.
func (n *Notifier) RuleCreated(rule *database.AlertRule) {
	n.emit(SubjectRuleCreated, map[string]interface{}{
		"rule_id":     rule.UUID,
		"name":        rule.Name,
		"metric_name": rule.MetricName,
		"level":       rule.Level,
		"timestamp":   time.Now().UTC(),
	})
}

// AlertTriggered reports a rule match that created an alert.
func (n *Notifier) AlertTriggered(alert *database.Alert) {
	n.emit(SubjectAlertTriggered, map[string]interface{}{
		"alert_id":        alert.UUID,
		"rule_id":         alert.RuleUUID,
		"rule_name":       alert.RuleName,
		"device_id":       alert.DeviceID,
		"metric_name":     alert.MetricName,
		"level":           alert.Level,
		"current_value":   alert.CurrentValue,
		"threshold_value": alert.ThresholdValue,
		"timestamp":       time.Now().UTC(),
	})
}

// AlertResolved reports an alert leaving the active state.
func (n *Notifier) AlertResolved(alert *database.Alert, resolvedBy string) {
	n.emit(SubjectAlertResolved, map[string]interface{}{
		"alert_id":    alert.UUID,
		"rule_name":   alert.RuleName,
		"device_id":   alert.DeviceID,
		"metric_name": alert.MetricName,
		"resolved_by": resolvedBy,
		"timestamp":   time.Now().UTC(),
	})
}
