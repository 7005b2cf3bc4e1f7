// Package events couples the telemetry core to the external NATS bus.
// Publishing is fire-and-forget: transport failures are logged, never
// surfaced to the caller.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher sends a JSON payload to a bus subject.
type Publisher interface {
	Publish(subject string, payload interface{}) error
	Close()
}

// NATSPublisher publishes over a core NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

// ConnectNATS dials the bus with reconnection handling and returns a
// publisher plus the raw connection (the consumer shares it).
func ConnectNATS(url string) (*NATSPublisher, *nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, conn, nil
}

// Publish marshals payload and writes it to subject.
func (p *NATSPublisher) Publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return p.conn.Publish(subject, data)
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
