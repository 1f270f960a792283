package metrics

import (
	"slices"
	"sync"
	"time"
)

// window keeps the most recent call durations for one concern.
type window struct {
	mu   sync.Mutex
	ring []time.Duration
	next int
	full bool
}

func newWindow(size int) *window {
	return &window{ring: make([]time.Duration, size)}
}

func (w *window) record(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.ring[w.next] = d
	w.next = (w.next + 1) % len(w.ring)
	if w.next == 0 {
		w.full = true
	}
}

func (w *window) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next, w.full = 0, false
}

// stats summarizes the window in milliseconds.
func (w *window) stats() LatencyStats {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.ring)
	}
	sorted := slices.Clone(w.ring[:n])
	w.mu.Unlock()

	if n == 0 {
		return LatencyStats{}
	}
	slices.Sort(sorted)

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return LatencyStats{
		Mean:  millis(sum) / float64(n),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		P99:   percentile(sorted, 99),
		Min:   millis(sorted[0]),
		Max:   millis(sorted[n-1]),
		Count: n,
	}
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []time.Duration, p float64) float64 {
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	if lo+1 >= len(sorted) {
		return millis(sorted[lo])
	}
	frac := rank - float64(lo)
	return millis(sorted[lo])*(1-frac) + millis(sorted[lo+1])*frac
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
