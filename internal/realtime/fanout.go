// Package realtime fans incoming telemetry out to in-process subscriptions.
// Subscriptions live only in memory: they are lost on restart and are not
// shared across processes.
package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// deliveryBuffer is the per-subscription channel depth. A subscriber that
// stops draining loses messages instead of blocking ingestion.
const deliveryBuffer = 32

// SubscriptionFilter selects which points a subscription receives. Empty
// device/metric lists match everything.
type SubscriptionFilter struct {
	DeviceIDs       []string          `json:"device_ids,omitempty"`
	MetricNames     []string          `json:"metric_names,omitempty"`
	Tags            map[string]string `json:"tags,omitempty"`
	FilterCondition string            `json:"filter_condition,omitempty"`
	MaxFrequencyMS  int               `json:"max_frequency,omitempty"`
}

// Delivery is one matched point handed to a subscriber.
type Delivery struct {
	SubscriptionID string              `json:"subscription_id"`
	DeviceID       string              `json:"device_id"`
	Point          telemetry.DataPoint `json:"point"`
	SentAt         time.Time           `json:"sent_at"`
}

type subscription struct {
	id        string
	filter    SubscriptionFilter
	ch        chan Delivery
	createdAt time.Time
	lastSent  time.Time
}

func (s *subscription) matches(deviceID, metricName string) bool {
	if len(s.filter.DeviceIDs) > 0 && !containsString(s.filter.DeviceIDs, deviceID) {
		return false
	}
	if len(s.filter.MetricNames) > 0 && !containsString(s.filter.MetricNames, metricName) {
		return false
	}
	return true
}

// Fanout is the subscription registry. A single mutex guards the map;
// subscription counts are expected to stay small.
type Fanout struct {
	mu   sync.Mutex
	subs map[string]*subscription
}

// NewFanout creates an empty registry.
func NewFanout() *Fanout {
	return &Fanout{subs: make(map[string]*subscription)}
}

// Subscribe registers a filter and returns the subscription id plus the
// channel deliveries arrive on.
func (f *Fanout) Subscribe(filter SubscriptionFilter) (string, <-chan Delivery) {
	sub := &subscription{
		id:        uuid.New().String(),
		filter:    filter,
		ch:        make(chan Delivery, deliveryBuffer),
		createdAt: time.Now(),
	}

	f.mu.Lock()
	f.subs[sub.id] = sub
	f.mu.Unlock()

	return sub.id, sub.ch
}

// Unsubscribe removes a subscription and closes its channel. Returns false
// when the id is unknown.
func (f *Fanout) Unsubscribe(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub, ok := f.subs[id]
	if !ok {
		return false
	}
	delete(f.subs, id)
	close(sub.ch)
	return true
}

// Count returns the number of live subscriptions.
func (f *Fanout) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Notify offers a point to every matching subscription. Delivery to one
// subscription is suppressed while its max_frequency window since the last
// send has not elapsed; bursts are dropped, not queued. Sends never block:
// a full subscriber buffer also drops.
func (f *Fanout) Notify(deviceID string, point telemetry.DataPoint) {
	now := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, sub := range f.subs {
		if !sub.matches(deviceID, point.MetricName) {
			continue
		}
		if sub.filter.MaxFrequencyMS > 0 {
			minGap := time.Duration(sub.filter.MaxFrequencyMS) * time.Millisecond
			if !sub.lastSent.IsZero() && now.Sub(sub.lastSent) < minGap {
				metrics.RealtimeDropped.Inc()
				continue
			}
		}

		select {
		case sub.ch <- Delivery{
			SubscriptionID: sub.id,
			DeviceID:       deviceID,
			Point:          point,
			SentAt:         now,
		}:
			sub.lastSent = now
			metrics.RealtimeDeliveries.Inc()
		default:
			metrics.RealtimeDropped.Inc()
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
