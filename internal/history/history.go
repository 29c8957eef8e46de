// Package history records buffer occupancy over time.
package history

import (
	"time"

	"github.com/pipelined/srcsync/signal"
)

// Capacity is the default number of records kept.
const Capacity = 16

// Record is a buffer level observed at a point in time.
type Record struct {
	Time  signal.Time
	Level int
}

// History is a fixed capacity ring of records, oldest overwritten first.
type History struct {
	records []Record
	head    int
	count   int
}

// New returns an empty history that keeps up to capacity records.
func New(capacity int) *History {
	return &History{records: make([]Record, max(capacity, 2))}
}

// Push appends a record.
func (h *History) Push(t signal.Time, level int) {
	h.records[(h.head+h.count)%len(h.records)] = Record{Time: t, Level: level}
	if h.count < len(h.records) {
		h.count++
		return
	}
	h.head = (h.head + 1) % len(h.records)
}

// Reset drops all records.
func (h *History) Reset() {
	h.head, h.count = 0, 0
}

// Len returns number of records.
func (h *History) Len() int {
	return h.count
}

// At returns i-th record, oldest first.
func (h *History) At(i int) Record {
	return h.records[(h.head+i)%len(h.records)]
}

// Last returns the newest record.
func (h *History) Last() (Record, bool) {
	if h.count == 0 {
		return Record{}, false
	}
	return h.At(h.count - 1), true
}

// Window summarizes records not older than window relative to now.
func (h *History) Window(now signal.Time, window time.Duration) (count, low, high int) {
	for i := h.count - 1; i >= 0; i-- {
		r := h.At(i)
		if now.Sub(r.Time) > window {
			break
		}
		if count == 0 || r.Level < low {
			low = r.Level
		}
		if count == 0 || r.Level > high {
			high = r.Level
		}
		count++
	}
	return count, low, high
}

// Filled reports whether downstream left data in the buffer during every
// cycle of the trailing window. At least two records are required.
func (h *History) Filled(now signal.Time, window time.Duration) bool {
	count, low, _ := h.Window(now, window)
	return count >= 2 && low >= 1
}

// Pinned reports whether the buffer was observed at capacity within the
// trailing window.
func (h *History) Pinned(now signal.Time, window time.Duration, capacity int) bool {
	count, _, high := h.Window(now, window)
	return count > 0 && high >= capacity
}
