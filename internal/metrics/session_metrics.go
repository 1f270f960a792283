// Package metrics records how the session's remote calls perform.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Concern names, matching the session's busy flags.
const (
	ConcernSearch    = "search"
	ConcernMutation  = "mutation"
	ConcernDecks     = "decks"
	ConcernRecommend = "recommend"
	ConcernSimulate  = "simulate"
)

// latencyWindow is how many recent calls per concern feed LatencyStats.
const latencyWindow = 2000

var concerns = []string{ConcernSearch, ConcernMutation, ConcernDecks, ConcernRecommend, ConcernSimulate}

// SessionMetrics tracks call latency per concern plus outcome counters.
type SessionMetrics struct {
	latency map[string]*window // fixed key set, never written after construction

	// Counters (atomic operations for thread safety)
	Calls              atomic.Uint64
	Failures           atomic.Uint64
	SupersededSearches atomic.Uint64
	CacheFallbacks     atomic.Uint64

	startTime time.Time
	mu        sync.RWMutex
}

// NewSessionMetrics creates a new metrics collector.
func NewSessionMetrics() *SessionMetrics {
	m := &SessionMetrics{
		latency:   make(map[string]*window, len(concerns)),
		startTime: time.Now(),
	}
	for _, c := range concerns {
		m.latency[c] = newWindow(latencyWindow)
	}
	return m
}

// Observe records one settled call for concern.
func (m *SessionMetrics) Observe(concern string, d time.Duration, err error) {
	m.Calls.Add(1)
	if err != nil {
		m.Failures.Add(1)
	}
	if h, ok := m.latency[concern]; ok {
		h.record(d)
	}
}

// Track starts timing a call; call the returned func with the outcome.
func (m *SessionMetrics) Track(concern string) func(error) {
	start := time.Now()
	return func(err error) {
		m.Observe(concern, time.Since(start), err)
	}
}

// SessionStats contains the computed statistics.
type SessionStats struct {
	Latency            map[string]LatencyStats `json:"latency"`
	Calls              uint64                  `json:"calls"`
	Failures           uint64                  `json:"failures"`
	SupersededSearches uint64                  `json:"superseded_searches"`
	CacheFallbacks     uint64                  `json:"cache_fallbacks"`
	SuccessRate        float64                 `json:"success_rate"` // percentage
	Uptime             string                  `json:"uptime"`
}

// LatencyStats summarizes the recent calls of one concern.
type LatencyStats struct {
	Mean  float64 `json:"mean"`  // milliseconds
	P50   float64 `json:"p50"`   // median
	P95   float64 `json:"p95"`   // 95th percentile
	P99   float64 `json:"p99"`   // 99th percentile
	Min   float64 `json:"min"`   // minimum
	Max   float64 `json:"max"`   // maximum
	Count int     `json:"count"` // number of samples
}

// GetStats returns a snapshot of the current statistics.
func (m *SessionMetrics) GetStats() *SessionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := m.Calls.Load()
	failures := m.Failures.Load()

	successRate := 0.0
	if calls > 0 {
		successRate = (float64(calls-failures) / float64(calls)) * 100
	}

	latency := make(map[string]LatencyStats, len(m.latency))
	for c, h := range m.latency {
		latency[c] = h.stats()
	}

	return &SessionStats{
		Latency:            latency,
		Calls:              calls,
		Failures:           failures,
		SupersededSearches: m.SupersededSearches.Load(),
		CacheFallbacks:     m.CacheFallbacks.Load(),
		SuccessRate:        successRate,
		Uptime:             time.Since(m.startTime).Round(time.Second).String(),
	}
}

// Reset clears all metrics.
func (m *SessionMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range m.latency {
		h.reset()
	}
	m.Calls.Store(0)
	m.Failures.Store(0)
	m.SupersededSearches.Store(0)
	m.CacheFallbacks.Store(0)
	m.startTime = time.Now()
}
