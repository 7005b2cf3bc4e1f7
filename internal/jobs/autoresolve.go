package jobs

import (
	"log"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/services"
)

// AutoResolveMonitor resolves active alerts whose auto-resolve deadline
// has passed.
type AutoResolveMonitor struct {
	alerts *services.AlertService
}

// NewAutoResolveMonitor creates a new auto-resolve monitor
func NewAutoResolveMonitor(alerts *services.AlertService) *AutoResolveMonitor {
	return &AutoResolveMonitor{alerts: alerts}
}

// Sweep resolves all expired active alerts and returns how many transitioned.
func (m *AutoResolveMonitor) Sweep() (int, error) {
	expired, err := m.alerts.ExpiredAutoResolve(time.Now().UTC())
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, alert := range expired {
		if _, err := m.alerts.Resolve(alert.UUID, "auto"); err != nil {
			log.Printf("Failed to auto-resolve alert %s: %v", alert.UUID, err)
			continue
		}
		resolved++
		log.Printf("Auto-resolved alert %s (rule %s)", alert.UUID, alert.RuleName)
	}

	return resolved, nil
}

// Start begins the periodic sweep
func (m *AutoResolveMonitor) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			resolved, err := m.Sweep()
			if err != nil {
				log.Printf("Auto-resolve monitor error: %v", err)
			} else if resolved > 0 {
				log.Printf("Auto-resolve monitor: resolved %d alerts", resolved)
			}
		case <-stop:
			log.Println("Auto-resolve monitor stopped")
			return
		}
	}
}
