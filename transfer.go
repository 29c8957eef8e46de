package srcsync

import (
	"github.com/pipelined/srcsync/cbuffer"
	"github.com/pipelined/srcsync/internal/stall"
	"github.com/pipelined/srcsync/internal/timestamp"
	"github.com/pipelined/srcsync/signal"
)

// step runs state machines of routed sink groups and returns the smallest
// clamp. Hold is set when any group asks to wait for input.
func (o *Operator) step(b *budget) (limit int, hold bool) {
	limit = b.max
	for j := range o.sourceGroups {
		src := &o.sourceGroups[j]
		if !src.Connected || src.Feeder < 0 {
			continue
		}
		i := src.Feeder
		g := &o.sinkGroups[i]
		from, stalled := g.Stall.State, g.Stalled()
		clamp := g.Stall.Step(o.input(i, j, b))
		if g.Stall.State != from {
			o.log.WithField("group", i).Debugf("%v -> %v", from, g.Stall.State)
		}
		if g.Stalled() != stalled {
			o.flip(i, !stalled)
		}
		switch clamp {
		case stall.ClampData:
			limit = min(limit, o.sinks.Data(&g.Group))
		case stall.ClampMin:
			limit = min(limit, b.min)
		case stall.ClampHold:
			hold = true
		}
		if g.RateMatch != nil && g.Connected {
			g.RateMatch.Update(b.now, o.sinks.Data(&g.Group), o.config.SampleRate)
		}
	}
	return limit, hold
}

// input collects what the state machine of sink group i routed to source
// group j needs.
func (o *Operator) input(i, j int, b *budget) stall.Input {
	g := &o.sinkGroups[i]
	return stall.Input{
		Connected:   g.Connected,
		Synchronous: g.Synchronous,
		Data:        o.sinks.Data(&g.Group),
		Period:      b.period.Ceil(),
		Min:         b.min,
		Filled:      o.filled(j, b),
		Now:         b.now,
		DefaultFill: o.samples(o.config.DefaultFill),
		MaxDiscard:  o.config.MaxDiscard,
		Classify: func() timestamp.Classification {
			return g.Timestamp.Classify(o.sinks.Buffer(g.MetadataTerminal), o.config.SampleRate, o.config.RestartGap)
		},
		Discard: func(n int) int {
			return o.discard(i, n)
		},
	}
}

// filled reports whether every buffer downstream of source group j holds
// data.
func (o *Operator) filled(j int, b *budget) bool {
	if o.probe != nil {
		return b.latency >= o.frac(o.config.MaxLatency)-b.period
	}
	return o.sourceGroups[j].History.Filled(b.now, o.config.Period)
}

// execute moves t samples into every connected source group.
func (o *Operator) execute(b *budget, t int, touched *Touched) {
	if len(o.scratch) < t {
		o.scratch = make([]int32, t)
	}
	for j := range o.sourceGroups {
		src := &o.sourceGroups[j]
		if !src.Connected {
			continue
		}
		if src.Feeder < 0 {
			o.silence(j, min(t, o.sources.Space(&src.Group)), touched)
			continue
		}
		o.transfer(j, t, b, touched)
	}
	o.drain(t)
	o.latency += signal.Samples(t)
}

// transfer copies from the feeder of source group j and pads the rest of
// t with silence.
func (o *Operator) transfer(j, t int, b *budget, touched *Touched) {
	src := &o.sourceGroups[j]
	i := src.Feeder
	g := &o.sinkGroups[i]
	var c int
	if g.Connected && g.Stall.State == stall.Flowing {
		c = min(o.sinks.Data(&g.Group), t)
	}
	words := o.scratch[:c]
	for _, term := range src.Terminals {
		dst := o.sources.Buffer(term)
		if r := o.routes.Current(term); r.Valid && c > 0 {
			o.sinks.Buffer(r.Sink).Peek(words)
			o.routes.Apply(term, words)
			dst.Write(words)
		} else {
			dst.WriteSilence(c)
			o.routes.Advance(term, c)
		}
		dst.WriteSilence(t - c)
		o.routes.Advance(term, t-c)
	}
	if c > 0 {
		for _, term := range g.Terminals {
			o.sinks.Buffer(term).Advance(c)
		}
		o.consumed |= 1 << uint(i)
	}

	dst := o.metadataBuffer(j)
	if c > 0 {
		var fwd *cbuffer.Buffer
		if src.MetadataSink == i {
			fwd = dst
		}
		if dropped := g.Timestamp.Forward(o.sinks.Buffer(g.MetadataTerminal), fwd, c, o.config.SampleRate, b.now, src.ProvideTimestamp); dropped > 0 {
			o.log.WithField("group", j).Warnf("%d tags dropped", dropped)
		}
	}
	if err := timestamp.Silence(dst, t-c); err != nil {
		o.log.WithField("group", j).Warnf("silence tag dropped: %v", err)
	}
	g.Stall.Account(c, t-c)
	o.metric.Copied.Add(int64(c))
	o.metric.Silence.Add(int64(t - c))
	if t > 0 {
		touched.Sources |= uint32(src.Channels)
	}
}

// silence writes n samples of silence into source group j.
func (o *Operator) silence(j, n int, touched *Touched) {
	if n <= 0 {
		return
	}
	src := &o.sourceGroups[j]
	for _, term := range src.Terminals {
		o.sources.Buffer(term).WriteSilence(n)
		o.routes.Advance(term, n)
	}
	if err := timestamp.Silence(o.metadataBuffer(j), n); err != nil {
		o.log.WithField("group", j).Warnf("silence tag dropped: %v", err)
	}
	o.metric.Silence.Add(int64(n))
	touched.Sources |= uint32(src.Channels)
}

// drain discards up to n samples from connected sink groups which are not
// routed and have purge enabled.
func (o *Operator) drain(n int) {
	for i := range o.sinkGroups {
		g := &o.sinkGroups[i]
		if g.Purge && g.Connected && !o.routed(i) {
			o.discard(i, n)
		}
	}
}

// discard drops up to n samples from every terminal of sink group i along
// with their tags.
func (o *Operator) discard(i, n int) int {
	g := &o.sinkGroups[i]
	n = min(n, o.sinks.Data(&g.Group))
	if n <= 0 {
		return 0
	}
	for _, term := range g.Terminals {
		if b := o.sinks.Buffer(term); b != nil {
			b.Advance(n)
		}
	}
	g.Timestamp.Drop(o.sinks.Buffer(g.MetadataTerminal), n, o.config.SampleRate)
	o.metric.Discarded.Add(int64(n))
	o.consumed |= 1 << uint(i)
	return n
}

// kicks reports consumed sink groups according to their back-kick mode.
func (o *Operator) kicks(touched *Touched) {
	for i := range o.sinkGroups {
		if o.consumed&(1<<uint(i)) == 0 {
			continue
		}
		g := &o.sinkGroups[i]
		if g.Connected && g.Kick(o.sinks.Space(&g.Group)) {
			touched.Sinks |= uint32(g.Channels)
		}
	}
}

func (o *Operator) metadataBuffer(j int) *cbuffer.Buffer {
	src := &o.sourceGroups[j]
	if !src.Metadata || src.MetadataTerminal < 0 {
		return nil
	}
	return o.sources.Buffer(src.MetadataTerminal)
}
