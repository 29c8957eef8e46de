// Package stall implements the per sink group state machine that decides
// whether input is copied, replaced with silence or discarded.
package stall

import (
	"fmt"
	"time"

	"github.com/pipelined/srcsync/internal/timestamp"
	"github.com/pipelined/srcsync/signal"
)

// State of a sink group.
type State int

// states
const (
	NotConnected State = iota
	Flowing
	Pending
	Stalled
	Restarting
	Filling
	Discarding
	WaitingForTag
)

var names = [...]string{
	NotConnected:  "not-connected",
	Flowing:       "flowing",
	Pending:       "pending",
	Stalled:       "stalled",
	Restarting:    "restarting",
	Filling:       "filling",
	Discarding:    "discarding",
	WaitingForTag: "waiting-for-tag",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(names) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return names[s]
}

// Silencing reports whether the state substitutes silence for input.
func (s State) Silencing() bool {
	switch s {
	case Stalled, WaitingForTag, Filling, Discarding:
		return true
	}
	return false
}

// Clamp limits the transfer of a cycle.
type Clamp int

const (
	// ClampNone leaves the transfer unlimited.
	ClampNone Clamp = iota
	// ClampData limits the transfer to available input.
	ClampData
	// ClampMin limits the transfer to the minimum transfer.
	ClampMin
	// ClampHold aborts the cycle.
	ClampHold
)

// Input carries everything a step needs to know about the cycle.
type Input struct {
	Connected   bool
	Synchronous bool
	// Data is the minimum number of samples across group terminals.
	Data   int
	Period int
	// Min is the minimum transfer of the cycle.
	Min int
	// Filled is the downstream-filled estimate.
	Filled bool
	Now    signal.Time
	// DefaultFill is the silence inserted when the gap is unknown.
	DefaultFill int
	MaxDiscard  time.Duration
	// Classify inspects the input timeline.
	Classify func() timestamp.Classification
	// Discard drops up to n input samples and returns how many were
	// dropped.
	Discard func(n int) int
}

// Machine is the state of one sink group.
type Machine struct {
	State State
	// InsertedSilence counts silence emitted while stalled or waiting.
	InsertedSilence int
	// SilenceRemaining counts silence still to emit while filling.
	SilenceRemaining int
	// DiscardRemaining counts input still to drop while discarding.
	DiscardRemaining int
	untilFull        bool
	discardSince     signal.Time
}

// Reset moves the machine to NotConnected and clears counters.
func (m *Machine) Reset() {
	*m = Machine{}
}

// Step evaluates the machine once. Chained transitions are followed, but
// every state is evaluated at most once per step.
func (m *Machine) Step(in Input) Clamp {
	if !in.Connected {
		m.Reset()
		return ClampNone
	}
	if in.Synchronous {
		m.set(Flowing)
		return ClampData
	}
	var visited uint
	for {
		visited |= 1 << uint(m.State)
		clamp, chain := m.eval(&in)
		if !chain {
			return clamp
		}
		if visited&(1<<uint(m.State)) != 0 {
			return clampOf(m.State)
		}
	}
}

// eval runs the rules of the current state. When chain is true the state
// changed and the new state must be evaluated too.
func (m *Machine) eval(in *Input) (Clamp, bool) {
	switch m.State {
	case NotConnected:
		m.set(Restarting)
		return ClampNone, true
	case Flowing:
		if in.Data >= in.Period {
			return ClampData, false
		}
		if in.Min == 0 {
			m.set(Pending)
			return ClampHold, false
		}
		m.stall()
		return ClampMin, false
	case Pending:
		if in.Data < in.Period {
			if in.Min > 0 {
				m.stall()
				return ClampMin, false
			}
			return ClampHold, false
		}
		c := in.classify()
		switch {
		case c.Kind == timestamp.Gap && c.Gap > 0:
			m.fill(c.Gap, false)
			return ClampMin, false
		case c.Kind == timestamp.Restart:
			m.fill(in.DefaultFill, true)
			return ClampMin, false
		}
		m.set(Flowing)
		return ClampData, true
	case Stalled, WaitingForTag:
		if in.Data < in.Period {
			return ClampMin, false
		}
		return m.resume(in)
	case Restarting:
		if in.Filled {
			m.set(Flowing)
			return ClampData, true
		}
		return ClampNone, false
	case Filling:
		if m.SilenceRemaining <= 0 || (m.untilFull && in.Filled) {
			m.set(Flowing)
			return ClampData, true
		}
		return ClampMin, false
	case Discarding:
		return m.discard(in)
	}
	panic(fmt.Sprintf("stall: invalid state %v", m.State))
}

// resume decides how a stalled input continues once data is back.
func (m *Machine) resume(in *Input) (Clamp, bool) {
	c := in.classify()
	switch c.Kind {
	case timestamp.Unknown:
		m.fill(in.DefaultFill, true)
		return ClampMin, false
	case timestamp.WaitingForTag:
		m.set(WaitingForTag)
		return ClampMin, false
	case timestamp.Restart:
		m.set(Restarting)
		return ClampNone, true
	}
	switch s := m.InsertedSilence; {
	case c.Gap == s:
		m.set(Flowing)
		return ClampData, true
	case c.Gap > s:
		m.fill(c.Gap-s, false)
		return ClampMin, false
	default:
		m.set(Discarding)
		m.DiscardRemaining = s - c.Gap
		m.discardSince = in.Now
		return ClampMin, true
	}
}

func (m *Machine) discard(in *Input) (Clamp, bool) {
	if n := min(m.DiscardRemaining, in.Data); n > 0 && in.Discard != nil {
		d := in.Discard(n)
		m.DiscardRemaining -= d
		in.Data -= d
	}
	if m.DiscardRemaining <= 0 && in.Data >= in.Min && in.Data > 0 {
		// remaining data covers the minimum, no silence is needed.
		m.set(Flowing)
		return ClampData, false
	}
	if in.Now.Sub(m.discardSince) > in.MaxDiscard {
		m.set(Restarting)
		return ClampNone, true
	}
	return ClampMin, false
}

// Account updates counters with what the cycle actually emitted.
func (m *Machine) Account(copied, silence int) {
	switch m.State {
	case Stalled, WaitingForTag:
		m.InsertedSilence += silence
	case Filling:
		m.SilenceRemaining = max(m.SilenceRemaining-silence, 0)
	case Discarding:
		m.DiscardRemaining += silence
	}
}

func (m *Machine) set(s State) {
	m.State = s
}

func (m *Machine) stall() {
	m.State = Stalled
	m.InsertedSilence = 0
}

func (m *Machine) fill(n int, untilFull bool) {
	m.State = Filling
	m.SilenceRemaining = n
	m.untilFull = untilFull
}

func (in *Input) classify() timestamp.Classification {
	if in.Classify == nil {
		return timestamp.Classification{Kind: timestamp.Unknown}
	}
	return in.Classify()
}

func clampOf(s State) Clamp {
	switch s {
	case Flowing:
		return ClampData
	case Pending:
		return ClampHold
	case NotConnected, Restarting:
		return ClampNone
	}
	return ClampMin
}
