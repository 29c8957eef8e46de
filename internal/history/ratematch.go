package history

import (
	"time"

	"github.com/pipelined/srcsync/signal"
)

// MaxAdjust limits the rate trim reported by RateMatcher.
const MaxAdjust = 0.005

// smoothing is the weight of a new drift estimate.
const smoothing = 0.125

// RateMatcher estimates how much faster or slower a producer runs than the
// consumer by watching the level of the buffer between them. The reported
// adjustment is the fraction the producer rate should be trimmed by.
type RateMatcher struct {
	window  time.Duration
	records *History
	adjust  float64
}

// NewRateMatcher returns a matcher that measures drift over window.
func NewRateMatcher(window time.Duration) *RateMatcher {
	return &RateMatcher{
		window:  window,
		records: New(Capacity),
	}
}

// Update records the buffer level and returns the smoothed adjustment.
// Records are spaced so that the ring spans the whole window.
func (m *RateMatcher) Update(now signal.Time, level, sampleRate int) float64 {
	last, ok := m.records.Last()
	if ok && now.Sub(last.Time) < m.window/time.Duration(Capacity-1) {
		return m.adjust
	}
	m.records.Push(now, level)
	first := m.records.At(0)
	elapsed := now.Sub(first.Time)
	if m.records.Len() < 2 || elapsed <= 0 || sampleRate <= 0 {
		return m.adjust
	}
	// level growth in samples per second relative to the nominal rate.
	drift := float64(level-first.Level) / elapsed.Seconds() / float64(sampleRate)
	m.adjust += (clamp(-drift) - m.adjust) * smoothing
	m.adjust = clamp(m.adjust)
	return m.adjust
}

// Adjust returns the current adjustment.
func (m *RateMatcher) Adjust() float64 {
	return m.adjust
}

// Reset forgets all observations.
func (m *RateMatcher) Reset() {
	m.records.Reset()
	m.adjust = 0
}

func clamp(v float64) float64 {
	return max(min(v, MaxAdjust), -MaxAdjust)
}
