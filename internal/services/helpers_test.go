package services

import (
	"testing"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/events"
	"github.com/fleetwatch/fleetwatch/internal/realtime"
	"github.com/fleetwatch/fleetwatch/internal/testhelpers"
)

// testEnv wires the full service stack over an in-memory database with a
// capturing event publisher.
type testEnv struct {
	db          *gorm.DB
	pub         *testhelpers.CapturePublisher
	metrics     *MetricService
	rules       *RuleService
	alerts      *AlertService
	evaluator   *AlertEvaluator
	fanout      *realtime.Fanout
	ingestion   *IngestionService
	aggregation *AggregationService
	query       *QueryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testhelpers.SetupTestDB(t)
	pub := testhelpers.NewCapturePublisher()
	notifier := events.NewNotifier(pub)

	env := &testEnv{
		db:      db,
		pub:     pub,
		metrics: NewMetricService(db, notifier),
		rules:   NewRuleService(db, notifier),
		alerts:  NewAlertService(db, notifier),
		fanout:  realtime.NewFanout(),
	}
	env.evaluator = NewAlertEvaluator(env.rules, env.alerts, notifier, nil)
	env.ingestion = NewIngestionService(db, env.metrics, env.evaluator, env.fanout, notifier)
	env.aggregation = NewAggregationService(db, 0)
	env.query = NewQueryService(db, env.aggregation)
	return env
}
