// Package route maps every output channel to the input channel it forwards.
//
// A change of route is two-phase: Set stores a switch route and fades the
// current one out; Commit swaps switch into current for a whole destination
// group once every pending member has finished fading out, and the new
// routes fade in.
package route

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSource is returned for out of range output channels.
var ErrInvalidSource = errors.New("invalid route source")

// Route forwards one input channel to an output channel.
type Route struct {
	Valid bool
	Sink  int
	Gain  float64
}

// fade tracks transition progress of a single output channel.
type fade struct {
	level float64
	// step is negative while fading out.
	step      float64
	remaining int
}

// Entry is the routing record of one output channel.
type Entry struct {
	Current Route
	Switch  Route
	Pending bool
	fade
}

// Table holds routes of all output channels.
type Table struct {
	entries    []Entry
	transition int
}

// New returns a table for n output channels with no valid routes.
// Transition is the crossfade length in samples.
func New(n, transition int) *Table {
	t := Table{
		entries:    make([]Entry, n),
		transition: max(transition, 0),
	}
	for i := range t.entries {
		t.entries[i].level = 1
	}
	return &t
}

// SetTransition changes the crossfade length for future transitions.
func (t *Table) SetTransition(n int) {
	t.transition = max(n, 0)
}

// Len returns number of output channels.
func (t *Table) Len() int {
	return len(t.entries)
}

func (t *Table) entry(source int) (*Entry, error) {
	if source < 0 || source >= len(t.entries) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSource, source)
	}
	return &t.entries[source], nil
}

// Set requests output channel source to forward input channel sink.
func (t *Table) Set(source, sink int, gain float64) error {
	e, err := t.entry(source)
	if err != nil {
		return err
	}
	e.Switch = Route{Valid: true, Sink: sink, Gain: gain}
	e.Pending = true
	t.fadeOut(e)
	return nil
}

// Clear requests output channel source to produce silence.
func (t *Table) Clear(source int) error {
	e, err := t.entry(source)
	if err != nil {
		return err
	}
	e.Switch = Route{}
	e.Pending = true
	t.fadeOut(e)
	return nil
}

func (t *Table) fadeOut(e *Entry) {
	if !e.Current.Valid || t.transition == 0 {
		e.remaining = 0
		return
	}
	if e.step < 0 {
		// already fading out.
		return
	}
	e.step = -1 / float64(t.transition)
	e.remaining = int(math.Ceil(e.level * float64(t.transition)))
}

// Current returns the route in effect for output channel source.
func (t *Table) Current(source int) Route {
	return t.entries[source].Current
}

// Effective returns the route that will be in effect once pending
// transitions complete.
func (t *Table) Effective(source int) Route {
	if e := t.entries[source]; e.Pending {
		return e.Switch
	}
	return t.entries[source].Current
}

// Pending reports whether output channel source waits for a switch.
func (t *Table) Pending(source int) bool {
	return t.entries[source].Pending
}

// Remaining returns samples left in the current fade of channel source.
func (t *Table) Remaining(source int) int {
	return t.entries[source].remaining
}

// Level returns current fade level of channel source.
func (t *Table) Level(source int) float64 {
	return t.entries[source].level
}

// Apply scales words copied through output channel source by route gain
// and fade level, advancing the fade.
func (t *Table) Apply(source int, words []int32) {
	e := &t.entries[source]
	gain := e.Current.Gain
	for i := range words {
		words[i] = saturate(float64(words[i]) * gain * e.level)
		if e.remaining > 0 {
			e.advance(1)
		}
	}
}

// Advance moves the fade of channel source by n samples of silence.
func (t *Table) Advance(source, n int) {
	t.entries[source].advance(n)
}

func (f *fade) advance(n int) {
	if f.remaining == 0 {
		return
	}
	n = min(n, f.remaining)
	f.level += f.step * float64(n)
	f.remaining -= n
	if f.remaining > 0 {
		return
	}
	if f.step < 0 {
		// keep negative step, commit flips it.
		f.level = 0
		return
	}
	f.level, f.step = 1, 0
}

// Ready reports whether members have a pending switch and none of them is
// still fading out.
func (t *Table) Ready(members []int) bool {
	pending := false
	for _, m := range members {
		if e := t.entries[m]; e.Pending {
			pending = true
			if e.remaining > 0 {
				return false
			}
		}
	}
	return pending
}

// Commit swaps switch routes into current routes for all pending members
// of a destination group. It happens only when no pending member is still
// fading out, so the group never observes a mix of old and new routes.
func (t *Table) Commit(members []int) bool {
	if !t.Ready(members) {
		return false
	}
	for _, m := range members {
		e := &t.entries[m]
		if !e.Pending {
			continue
		}
		e.Current, e.Switch, e.Pending = e.Switch, Route{}, false
		if !e.Current.Valid || t.transition == 0 {
			e.level, e.step, e.remaining = 1, 0, 0
			continue
		}
		if e.step < 0 {
			// fade-out coefficient becomes the fade-in coefficient.
			e.step = -e.step
		} else {
			e.step = 1 / float64(t.transition)
		}
		e.level, e.remaining = 0, t.transition
	}
	return true
}

// Settle completes all transitions immediately.
func (t *Table) Settle() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.Pending {
			e.Current, e.Switch, e.Pending = e.Switch, Route{}, false
		}
		e.level, e.step, e.remaining = 1, 0, 0
	}
}

func saturate(v float64) int32 {
	switch {
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(math.Round(v))
}
