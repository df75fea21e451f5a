// Package telemetry records per-tick vehicle samples and exposes them for
// the HTTP readout, the /metrics exposition and an optional InfluxDB sink.
package telemetry

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/kkonteh97/AmmoCarExample/internal/shared/types"
)

const DefaultCapacity = 1000

// Sink receives one sample per tick. Implementations must not block.
type Sink interface {
	Record(s types.TelemetrySample)
}

// Fanout forwards every sample to each sink in order.
type Fanout []Sink

func (f Fanout) Record(s types.TelemetrySample) {
	for _, sink := range f {
		sink.Record(s)
	}
}

// Direction classifies a signed speed.
func Direction(speedKmh, threshold float64) string {
	switch {
	case speedKmh > threshold:
		return "forward"
	case speedKmh < -threshold:
		return "reverse"
	default:
		return "stopped"
	}
}

// FormatSpeed renders a speedometer readout, e.g. "(R) 12.3 km/h" while
// reversing.
func FormatSpeed(speedKmh float64) string {
	prefix := ""
	if speedKmh < 0 {
		prefix = "(R) "
	}
	return fmt.Sprintf("%s%.1f km/h", prefix, math.Abs(speedKmh))
}

// Store keeps the most recent samples in memory.
type Store struct {
	mu          sync.RWMutex
	capacity    int
	recent      []types.TelemetrySample
	total       int64
	byDirection map[string]int64
	maxSpeed    float64
	last        types.TelemetrySample
}

// NewStore creates a store holding up to capacity samples.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity:    capacity,
		recent:      make([]types.TelemetrySample, 0, min(capacity, 512)),
		byDirection: make(map[string]int64),
	}
}

func (s *Store) Record(sample types.TelemetrySample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.byDirection[Direction(sample.SpeedKmh, 1)]++
	s.maxSpeed = math.Max(s.maxSpeed, math.Abs(sample.SpeedKmh))
	s.last = sample
	s.recent = append(s.recent, sample)
	if len(s.recent) > s.capacity {
		s.recent = s.recent[len(s.recent)-s.capacity:]
	}
}

// ListRecent returns up to limit samples, oldest first. A non-positive
// limit returns everything retained.
func (s *Store) ListRecent(limit int) []types.TelemetrySample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	out := make([]types.TelemetrySample, limit)
	copy(out, s.recent[len(s.recent)-limit:])
	return out
}

// Summary aggregates everything recorded so far.
type Summary struct {
	Total       int64            `json:"total"`
	ByDirection map[string]int64 `json:"by_direction"`
	MaxSpeedKmh float64          `json:"max_speed_kmh"`
	LastTick    uint64           `json:"last_tick"`
	LastSpeed   float64          `json:"last_speed_kmh"`
	LastTickMS  float64          `json:"last_tick_ms"`
}

func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	by := make(map[string]int64, len(s.byDirection))
	for k, v := range s.byDirection {
		by[k] = v
	}
	return Summary{
		Total:       s.total,
		ByDirection: by,
		MaxSpeedKmh: s.maxSpeed,
		LastTick:    s.last.Tick,
		LastSpeed:   s.last.SpeedKmh,
		LastTickMS:  s.last.TickMS,
	}
}

// WriteMetrics writes the summary in the Prometheus text format.
func (s *Store) WriteMetrics(w io.Writer) error {
	sum := s.Summary()
	lines := []string{
		"# HELP carsim_ticks_total Total simulation ticks recorded",
		"# TYPE carsim_ticks_total counter",
		fmt.Sprintf("carsim_ticks_total %d", sum.Total),
		"# HELP carsim_speed_kmh Vehicle speed at the last tick",
		"# TYPE carsim_speed_kmh gauge",
		fmt.Sprintf("carsim_speed_kmh %g", sum.LastSpeed),
		"# HELP carsim_speed_max_kmh Highest absolute speed observed",
		"# TYPE carsim_speed_max_kmh gauge",
		fmt.Sprintf("carsim_speed_max_kmh %g", sum.MaxSpeedKmh),
		"# HELP carsim_tick_duration_ms Wall time spent in the last tick",
		"# TYPE carsim_tick_duration_ms gauge",
		fmt.Sprintf("carsim_tick_duration_ms %g", sum.LastTickMS),
		"# HELP carsim_ticks_by_direction Ticks grouped by direction of travel",
		"# TYPE carsim_ticks_by_direction counter",
	}
	dirs := make([]string, 0, len(sum.ByDirection))
	for d := range sum.ByDirection {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		lines = append(lines, fmt.Sprintf("carsim_ticks_by_direction{direction=%q} %d", d, sum.ByDirection[d]))
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
