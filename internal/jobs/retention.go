package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
)

// RetentionSweeper deletes telemetry points older than each metric
// definition's retention window.
type RetentionSweeper struct {
	db *gorm.DB
}

// NewRetentionSweeper creates a new retention sweeper
func NewRetentionSweeper(db *gorm.DB) *RetentionSweeper {
	return &RetentionSweeper{db: db}
}

// Sweep purges expired points for every metric definition with a positive
// retention and returns the total rows removed.
func (s *RetentionSweeper) Sweep() (int64, error) {
	var definitions []database.MetricDefinition
	if err := s.db.Find(&definitions).Error; err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var purged int64
	for _, def := range definitions {
		if def.RetentionDays <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -def.RetentionDays)
		removed, err := database.PurgePointsBefore(s.db, def.Name, cutoff)
		if err != nil {
			log.Printf("Failed to purge points for metric %s: %v", def.Name, err)
			continue
		}
		if removed > 0 {
			metrics.PointsPurged.Add(float64(removed))
			log.Printf("Purged %d points for metric %s older than %s", removed, def.Name, cutoff.Format(time.RFC3339))
		}
		purged += removed
	}

	return purged, nil
}

// Start begins the periodic sweep
func (s *RetentionSweeper) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			purged, err := s.Sweep()
			if err != nil {
				log.Printf("Retention sweeper error: %v", err)
			} else if purged > 0 {
				log.Printf("Retention sweeper: purged %d points", purged)
			}
		case <-stop:
			log.Println("Retention sweeper stopped")
			return
		}
	}
}
