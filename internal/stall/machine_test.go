package stall_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pipelined/srcsync/internal/stall"
	"github.com/pipelined/srcsync/internal/timestamp"
	"github.com/pipelined/srcsync/signal"
)

const (
	period      = 120
	defaultFill = 240
	maxDiscard  = 100 * time.Millisecond
)

func classifyAs(kind timestamp.Kind, gap int) func() timestamp.Classification {
	return func() timestamp.Classification {
		return timestamp.Classification{Kind: kind, Gap: gap}
	}
}

func input(data, min int) stall.Input {
	return stall.Input{
		Connected:   true,
		Data:        data,
		Period:      period,
		Min:         min,
		DefaultFill: defaultFill,
		MaxDiscard:  maxDiscard,
	}
}

func TestTotality(t *testing.T) {
	states := []stall.State{
		stall.NotConnected,
		stall.Flowing,
		stall.Pending,
		stall.Stalled,
		stall.Restarting,
		stall.Filling,
		stall.Discarding,
		stall.WaitingForTag,
	}
	classifications := []timestamp.Classification{
		{Kind: timestamp.Unknown},
		{Kind: timestamp.WaitingForTag},
		{Kind: timestamp.Restart},
		{Kind: timestamp.Gap, Gap: -50},
		{Kind: timestamp.Gap},
		{Kind: timestamp.Gap, Gap: 50},
	}
	for _, s := range states {
		for _, connected := range []bool{false, true} {
			for _, data := range []int{0, period - 1, period, 10 * period} {
				for _, min := range []int{0, period} {
					for _, filled := range []bool{false, true} {
						for _, c := range classifications {
							c := c
							m := stall.Machine{State: s, InsertedSilence: 10, SilenceRemaining: 10, DiscardRemaining: 10}
							in := input(data, min)
							in.Connected = connected
							in.Filled = filled
							in.Classify = func() timestamp.Classification { return c }
							in.Discard = func(n int) int { return n }
							var clamp stall.Clamp
							assert.NotPanics(t, func() { clamp = m.Step(in) })
							assert.Contains(t, states, m.State)
							assert.Contains(t, []stall.Clamp{stall.ClampNone, stall.ClampData, stall.ClampMin, stall.ClampHold}, clamp)
							if !connected {
								assert.Equal(t, stall.NotConnected, m.State)
							}
						}
					}
				}
			}
		}
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		description string
		machine     stall.Machine
		input       stall.Input
		classify    func() timestamp.Classification
		state       stall.State
		clamp       stall.Clamp
		expected    stall.Machine
	}{
		{
			description: "connect without downstream fill",
			input:       input(period, 0),
			state:       stall.Restarting,
			clamp:       stall.ClampNone,
		},
		{
			description: "flowing keeps flowing",
			machine:     stall.Machine{State: stall.Flowing},
			input:       input(period, 0),
			state:       stall.Flowing,
			clamp:       stall.ClampData,
		},
		{
			description: "flowing underrun with latency left",
			machine:     stall.Machine{State: stall.Flowing},
			input:       input(10, 0),
			state:       stall.Pending,
			clamp:       stall.ClampHold,
		},
		{
			description: "flowing underrun without latency",
			machine:     stall.Machine{State: stall.Flowing, InsertedSilence: 77},
			input:       input(10, 60),
			state:       stall.Stalled,
			clamp:       stall.ClampMin,
		},
		{
			description: "pending recovers in time",
			machine:     stall.Machine{State: stall.Pending},
			input:       input(period, 0),
			classify:    classifyAs(timestamp.Gap, 0),
			state:       stall.Flowing,
			clamp:       stall.ClampData,
		},
		{
			description: "pending recovers late",
			machine:     stall.Machine{State: stall.Pending},
			input:       input(period, 0),
			classify:    classifyAs(timestamp.Gap, 30),
			state:       stall.Filling,
			clamp:       stall.ClampMin,
			expected:    stall.Machine{State: stall.Filling, SilenceRemaining: 30},
		},
		{
			description: "pending restart",
			machine:     stall.Machine{State: stall.Pending},
			input:       input(period, 0),
			classify:    classifyAs(timestamp.Restart, 0),
			state:       stall.Filling,
			clamp:       stall.ClampMin,
		},
		{
			description: "stalled without data",
			machine:     stall.Machine{State: stall.Stalled, InsertedSilence: 5},
			input:       input(0, 60),
			state:       stall.Stalled,
			clamp:       stall.ClampMin,
			expected:    stall.Machine{State: stall.Stalled, InsertedSilence: 5},
		},
		{
			description: "stalled gap equals inserted silence",
			machine:     stall.Machine{State: stall.Stalled, InsertedSilence: 300},
			input:       input(period, 0),
			classify:    classifyAs(timestamp.Gap, 300),
			state:       stall.Flowing,
			clamp:       stall.ClampData,
		},
		{
			description: "stalled gap exceeds inserted silence",
			machine:     stall.Machine{State: stall.Stalled, InsertedSilence: 300},
			input:       input(period, 0),
			classify:    classifyAs(timestamp.Gap, 500),
			state:       stall.Filling,
			clamp:       stall.ClampMin,
			expected:    stall.Machine{State: stall.Filling, InsertedSilence: 300, SilenceRemaining: 200},
		},
		{
			description: "stalled unknown gap",
			machine:     stall.Machine{State: stall.Stalled},
			input:       input(period, 0),
			classify:    classifyAs(timestamp.Unknown, 0),
			state:       stall.Filling,
			clamp:       stall.ClampMin,
		},
		{
			description: "stalled waits for tag",
			machine:     stall.Machine{State: stall.Stalled},
			input:       input(period, 0),
			classify:    classifyAs(timestamp.WaitingForTag, 0),
			state:       stall.WaitingForTag,
			clamp:       stall.ClampMin,
		},
		{
			description: "stalled restart",
			machine:     stall.Machine{State: stall.Stalled},
			input:       input(period, 0),
			classify:    classifyAs(timestamp.Restart, 0),
			state:       stall.Restarting,
			clamp:       stall.ClampNone,
		},
		{
			description: "filling done",
			machine:     stall.Machine{State: stall.Filling},
			input:       input(period, 0),
			state:       stall.Flowing,
			clamp:       stall.ClampData,
		},
		{
			description: "filling continues",
			machine:     stall.Machine{State: stall.Filling, SilenceRemaining: 10},
			input:       input(period, 0),
			state:       stall.Filling,
			clamp:       stall.ClampMin,
		},
		{
			description: "restarting with downstream filled",
			machine:     stall.Machine{State: stall.Restarting},
			input: func() stall.Input {
				in := input(period, 0)
				in.Filled = true
				return in
			}(),
			state: stall.Flowing,
			clamp: stall.ClampData,
		},
		{
			description: "synchronous never stalls",
			machine:     stall.Machine{State: stall.Stalled},
			input: func() stall.Input {
				in := input(0, 60)
				in.Synchronous = true
				return in
			}(),
			state: stall.Flowing,
			clamp: stall.ClampData,
		},
		{
			description: "disconnect resets counters",
			machine:     stall.Machine{State: stall.Filling, SilenceRemaining: 10},
			input:       stall.Input{},
			state:       stall.NotConnected,
			clamp:       stall.ClampNone,
		},
	}
	for _, test := range tests {
		m := test.machine
		in := test.input
		in.Classify = test.classify
		clamp := m.Step(in)
		assert.Equal(t, test.state, m.State, test.description)
		assert.Equal(t, test.clamp, clamp, test.description)
		if test.expected.State != stall.NotConnected {
			assert.Equal(t, test.expected, m, test.description)
		}
	}
}

func TestDiscard(t *testing.T) {
	m := stall.Machine{State: stall.Stalled, InsertedSilence: 300}
	var dropped int
	in := input(250, 0)
	in.Classify = classifyAs(timestamp.Gap, 100)
	in.Discard = func(n int) int {
		dropped += n
		return n
	}
	// 200 samples must go, 50 are left which covers min.
	assert.Equal(t, stall.ClampData, m.Step(in))
	assert.Equal(t, stall.Flowing, m.State)
	assert.Equal(t, 200, dropped)
	assert.Equal(t, 0, m.DiscardRemaining)

	m = stall.Machine{State: stall.Stalled, InsertedSilence: 300}
	dropped = 0
	in.Data = period
	in.Min = 60
	// not enough data to finish the discard.
	assert.Equal(t, stall.ClampMin, m.Step(in))
	assert.Equal(t, stall.Discarding, m.State)
	assert.Equal(t, period, dropped)
	assert.Equal(t, 200-period, m.DiscardRemaining)
	m.Account(0, 60)
	assert.Equal(t, 200-period+60, m.DiscardRemaining)

	// discarding for too long restarts.
	in.Now = signal.TimeOf(maxDiscard + time.Millisecond)
	in.Data = 0
	assert.Equal(t, stall.ClampNone, m.Step(in))
	assert.Equal(t, stall.Restarting, m.State)
}

func TestAccount(t *testing.T) {
	tests := []struct {
		description string
		machine     stall.Machine
		copied      int
		silence     int
		expected    stall.Machine
	}{
		{
			description: "stalled accumulates silence",
			machine:     stall.Machine{State: stall.Stalled, InsertedSilence: 10},
			silence:     5,
			expected:    stall.Machine{State: stall.Stalled, InsertedSilence: 15},
		},
		{
			description: "waiting accumulates silence",
			machine:     stall.Machine{State: stall.WaitingForTag},
			silence:     5,
			expected:    stall.Machine{State: stall.WaitingForTag, InsertedSilence: 5},
		},
		{
			description: "filling consumes remaining",
			machine:     stall.Machine{State: stall.Filling, SilenceRemaining: 10},
			silence:     15,
			expected:    stall.Machine{State: stall.Filling},
		},
		{
			description: "flowing ignores counters",
			machine:     stall.Machine{State: stall.Flowing},
			copied:      100,
			expected:    stall.Machine{State: stall.Flowing},
		},
	}
	for _, test := range tests {
		m := test.machine
		m.Account(test.copied, test.silence)
		assert.Equal(t, test.expected, m, test.description)
	}
}

// A producer stops while the output still holds 7.5ms of audio: the group
// first waits, then substitutes silence once the latency is used up.
func TestProducerStall(t *testing.T) {
	m := stall.Machine{State: stall.Flowing}
	assert.Equal(t, stall.ClampHold, m.Step(input(0, 0)))
	assert.Equal(t, stall.Pending, m.State)

	for i, min := range []int{96, 120} {
		assert.Equal(t, stall.ClampMin, m.Step(input(0, min)))
		assert.Equal(t, stall.Stalled, m.State)
		m.Account(0, min)
		assert.True(t, m.State.Silencing())
		if i == 1 {
			assert.Equal(t, 216, m.InsertedSilence)
		}
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "waiting-for-tag", stall.WaitingForTag.String())
	assert.Equal(t, "state(42)", stall.State(42).String())
	assert.False(t, stall.Pending.Silencing())
}
