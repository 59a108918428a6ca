package session

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at    time.Time
	took  time.Duration
	found bool
}

// StatsSnapshot aggregates the resolutions inside the rolling window.
type StatsSnapshot struct {
	Count    int     `json:"count"`
	NoParent int     `json:"no_parent"`
	MinUs    int64   `json:"min_us"`
	MaxUs    int64   `json:"max_us"`
	AvgUs    float64 `json:"avg_us"`
	P50Us    float64 `json:"p50_us"`
	P95Us    float64 `json:"p95_us"`
	P99Us    float64 `json:"p99_us"`
}

// ResolveStats tracks resolver latencies within a rolling window.
type ResolveStats struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
}

func NewResolveStats(window time.Duration) *ResolveStats {
	if window <= 0 {
		window = time.Hour
	}
	return &ResolveStats{
		samples: make([]sample, 0, 256),
		window:  window,
	}
}

// Window returns the length of the rolling window.
func (s *ResolveStats) Window() time.Duration {
	return s.window
}

// Record adds one resolution. Negative durations count as zero.
func (s *ResolveStats) Record(took time.Duration, found bool) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, took: max(took, 0), found: found})
}

func (s *ResolveStats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	noParent := 0
	for _, sm := range s.samples {
		us := sm.took.Microseconds()
		values = append(values, us)
		sum += us
		if !sm.found {
			noParent++
		}
	}
	slices.Sort(values)

	return StatsSnapshot{
		Count:    len(values),
		NoParent: noParent,
		MinUs:    values[0],
		MaxUs:    values[len(values)-1],
		AvgUs:    float64(sum) / float64(len(values)),
		P50Us:    percentile(values, 50),
		P95Us:    percentile(values, 95),
		P99Us:    percentile(values, 99),
	}
}

func (s *ResolveStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.at.Before(cutoff)
	})
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo := float64(sorted[lower])
	hi := float64(sorted[upper])
	return lo + ((hi - lo) * weight)
}
