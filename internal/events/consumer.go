package events

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/nats-io/nats.go"
)

// RuleDisabler is the piece of the rule store the consumer needs.
type RuleDisabler interface {
	DisableDeviceRules(deviceID string) (int64, error)
}

// deviceDeletedEvent is the inbound payload on device.deleted.
type deviceDeletedEvent struct {
	EventID  string `json:"event_id"`
	DeviceID string `json:"device_id"`
}

// Consumer reacts to inbound bus events. Currently only device.deleted,
// which bulk-disables the device's alert rules.
type Consumer struct {
	rules RuleDisabler
	seen  *idWindow
	sub   *nats.Subscription
}

// NewConsumer creates a consumer with a bounded dedup window of processed
// event ids.
func NewConsumer(rules RuleDisabler) *Consumer {
	return &Consumer{
		rules: rules,
		seen:  newIDWindow(1024),
	}
}

// Subscribe attaches the consumer to the bus connection.
func (c *Consumer) Subscribe(conn *nats.Conn) error {
	sub, err := conn.Subscribe(SubjectDeviceDeleted, func(msg *nats.Msg) {
		c.handleDeviceDeleted(msg.Data)
	})
	if err != nil {
		return err
	}
	c.sub = sub
	return nil
}

// Unsubscribe detaches from the bus.
func (c *Consumer) Unsubscribe() {
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			log.Printf("Consumer: unsubscribe failed: %v", err)
		}
	}
}

func (c *Consumer) handleDeviceDeleted(data []byte) {
	var ev deviceDeletedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Printf("Consumer: malformed device.deleted payload: %v", err)
		return
	}
	if ev.DeviceID == "" {
		log.Printf("Consumer: device.deleted without device_id, ignoring")
		return
	}
	// At-least-once delivery: skip event ids we already processed.
	if ev.EventID != "" && !c.seen.add(ev.EventID) {
		return
	}

	count, err := c.rules.DisableDeviceRules(ev.DeviceID)
	if err != nil {
		log.Printf("Consumer: failed to disable rules for device %s: %v", ev.DeviceID, err)
		return
	}
	if count > 0 {
		log.Printf("Consumer: disabled %d alert rules for deleted device %s", count, ev.DeviceID)
	}
}

// idWindow is a fixed-capacity set of recently seen ids. When full, the
// oldest entry is evicted, keeping memory bounded under sustained traffic.
type idWindow struct {
	mu    sync.Mutex
	cap   int
	order []string
	set   map[string]struct{}
}

func newIDWindow(capacity int) *idWindow {
	return &idWindow{
		cap: capacity,
		set: make(map[string]struct{}, capacity),
	}
}

// add records id and reports true if it was not already present.
func (w *idWindow) add(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.set[id]; ok {
		return false
	}
	if len(w.order) >= w.cap {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.set, oldest)
	}
	w.order = append(w.order, id)
	w.set[id] = struct{}{}
	return true
}
