package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/database"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
)

// AggregationType selects the reduction applied to each bucket
type AggregationType string

const (
	AggAvg    AggregationType = "avg"
	AggMin    AggregationType = "min"
	AggMax    AggregationType = "max"
	AggSum    AggregationType = "sum"
	AggCount  AggregationType = "count"
	AggMedian AggregationType = "median"
	AggP95    AggregationType = "p95"
	AggP99    AggregationType = "p99"
)

// ValidAggregationType reports whether t is a supported reduction.
// Unsupported types are rejected, never silently averaged.
func ValidAggregationType(t AggregationType) bool {
	switch t {
	case AggAvg, AggMin, AggMax, AggSum, AggCount, AggMedian, AggP95, AggP99:
		return true
	}
	return false
}

// AggregatedValue is one non-empty bucket: its start time and reduced value.
type AggregatedValue struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// DefaultMaxAggregationRows caps the raw rows fetched for a single
// aggregation call. A safety limit, not a correctness requirement.
const DefaultMaxAggregationRows = 50000

// AggregationService buckets raw telemetry over a window and reduces each
// bucket with an aggregation function. Only numeric values participate;
// other kinds are silently excluded.
type AggregationService struct {
	db      *gorm.DB
	maxRows int
}

// NewAggregationService creates a new AggregationService. maxRows <= 0
// falls back to DefaultMaxAggregationRows.
func NewAggregationService(db *gorm.DB, maxRows int) *AggregationService {
	if maxRows <= 0 {
		maxRows = DefaultMaxAggregationRows
	}
	return &AggregationService{db: db, maxRows: maxRows}
}

// Aggregate fetches raw points for (deviceID, metricName) in [start, end],
// partitions them into consecutive buckets of intervalSeconds starting at
// start, and reduces each bucket. Buckets without numeric points are
// omitted; output is ordered by bucket start ascending. An empty or
// inverted range yields an empty result, not an error. deviceID may be
// empty to span all devices.
func (s *AggregationService) Aggregate(deviceID, metricName string, aggType AggregationType, intervalSeconds int, start, end time.Time) ([]AggregatedValue, error) {
	started := time.Now()
	defer func() {
		metrics.AggregationDuration.Observe(time.Since(started).Seconds())
	}()

	if metricName == "" {
		return nil, fmt.Errorf("metric_name is required")
	}
	if !ValidAggregationType(aggType) {
		return nil, fmt.Errorf("unsupported aggregation type %q", aggType)
	}
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %d", intervalSeconds)
	}
	if !end.After(start) {
		return []AggregatedValue{}, nil
	}

	filter := database.PointFilter{
		MetricNames: []string{metricName},
		Start:       start,
		End:         end,
		Limit:       s.maxRows,
	}
	if deviceID != "" {
		filter.DeviceIDs = []string{deviceID}
	}
	rows, err := database.QueryPoints(s.db, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	interval := time.Duration(intervalSeconds) * time.Second
	buckets := make(map[int64][]float64)
	for i := range rows {
		if rows[i].NumericValue == nil {
			continue
		}
		idx := int64(rows[i].Timestamp.Sub(start) / interval)
		buckets[idx] = append(buckets[idx], *rows[i].NumericValue)
	}

	indices := make([]int64, 0, len(buckets))
	for idx := range buckets {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	out := make([]AggregatedValue, 0, len(indices))
	for _, idx := range indices {
		out = append(out, AggregatedValue{
			Timestamp: start.Add(time.Duration(idx) * interval),
			Value:     reduce(aggType, buckets[idx]),
		})
	}
	return out, nil
}

// reduce applies the aggregation function to a non-empty bucket.
func reduce(aggType AggregationType, values []float64) float64 {
	switch aggType {
	case AggAvg:
		return sum(values) / float64(len(values))
	case AggSum:
		return sum(values)
	case AggCount:
		return float64(len(values))
	case AggMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case AggMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	case AggMedian:
		return percentile(values, 50)
	case AggP95:
		return percentile(values, 95)
	case AggP99:
		return percentile(values, 99)
	default:
		return 0
	}
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// percentile computes the nearest-rank percentile of an unsorted bucket.
// The median uses the midpoint of the two central values for even counts.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if p == 50 && n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	rank := int(math.Ceil(p / 100 * float64(n)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}
