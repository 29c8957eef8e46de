/*
Package srcsync keeps independently clocked audio streams moving in
lock-step.

Concept

An Operator has up to 24 sink terminals (inputs) and 24 source terminals
(outputs). Every terminal is backed by a ring buffer owned by the host.
Terminals form groups which move together:

    sink group - input channels that are always consumed in equal amounts;
    source group - output channels that are always produced in equal amounts;

Routes map every output channel to an input channel. All routes of a source
group come from a single sink group, so a routed pair of groups is the unit
of flow control.

Cycles

The host calls Process whenever a producer wrote, a consumer read, or the
operator timer fired. Each cycle decides how many samples T to move to the
outputs:

    T is at least the minimum that keeps output latency above two periods;
    T is at most the amount that keeps output latency below MaxLatency;
    flowing inputs are copied, stalled inputs are replaced with silence.

Every sink group runs a state machine which tracks stalls, gaps and
restarts of its input timeline. When input timestamps are available, the
silence inserted during a stall is reconciled with the gap reported by the
producer: missing time is filled with more silence and excess input is
discarded.

Threading

The Operator has no locks. It must be driven from a single goroutine, which
is what the host package provides:

    h, err := host.New(srcsync.WithSampleRate(48000))
    ...
    h.Do(func(o *srcsync.Operator) error {
        return o.Connect(srcsync.SinkTerminal(0), buffer)
    })
    h.Kick()
*/
package srcsync
