package srcsync

import (
	"math"

	"github.com/pipelined/srcsync/signal"
)

// Touched lists terminals whose neighbours should be kicked after a cycle.
type Touched struct {
	Sinks   uint32
	Sources uint32
}

// budget is the outcome of the first pass of a cycle.
type budget struct {
	now     signal.Time
	period  signal.Frac
	latency signal.Frac
	// min and max bound the transfer of the cycle.
	min, max int
	// ready is false when the cycle must not transfer.
	ready bool
}

// Process runs one cycle. It must be called whenever a producer wrote, a
// consumer read or the timer fired. Process does nothing unless the
// operator is running.
func (o *Operator) Process() Touched {
	if !o.running() || o.suspended > 0 {
		return Touched{}
	}
	o.now = o.clock.Now()
	now := signal.TimeOf(o.now)
	o.commitRoutes()
	if o.dirty {
		o.derive()
	}
	o.consumed = 0
	o.metric.Cycles.Add(1)

	var touched Touched
	b := o.plan(now)
	defer func() {
		o.lastCycle, o.cycled = now, true
		o.metric.Latency.Set(o.latency.Duration(o.config.SampleRate))
	}()
	if !b.ready {
		o.drain(math.MaxInt)
		o.arm(b.period)
		o.kicks(&touched)
		return touched
	}

	limit, hold := o.step(&b)
	if hold {
		o.arm(b.latency - b.period)
		o.kicks(&touched)
		return touched
	}
	o.execute(&b, max(b.min, limit), &touched)
	o.arm(min(b.period, b.latency-2*b.period))
	o.kicks(&touched)
	return touched
}

// plan samples output occupancy, updates the latency estimate and computes
// transfer bounds.
func (o *Operator) plan(now signal.Time) budget {
	b := budget{
		now:    now,
		period: o.frac(o.config.Period),
	}
	space, occupancy := math.MaxInt, 0
	var routed, pinned bool
	for j := range o.sourceGroups {
		src := &o.sourceGroups[j]
		if !src.Connected {
			continue
		}
		level := o.sources.Occupancy(&src.Group)
		src.History.Push(now, level)
		if src.Feeder < 0 {
			continue
		}
		routed = true
		space = min(space, o.sources.Space(&src.Group), o.describable(j))
		occupancy = max(occupancy, level)
		if src.History.Pinned(now, o.config.Period, o.sources.Capacity(&src.Group)) {
			pinned = true
		}
	}

	maxLatency := o.frac(o.config.MaxLatency)
	if o.probe != nil {
		o.latency = signal.Samples(occupancy) + o.frac(o.probe.Latency())
	} else {
		if o.cycled {
			if elapsed := now.Sub(o.lastCycle); elapsed > 0 {
				o.latency -= o.frac(elapsed)
			}
		}
		o.latency = max(o.latency, signal.Samples(occupancy))
		if pinned {
			o.latency = max(o.latency, maxLatency)
		}
	}
	b.latency = o.latency

	if !routed || o.syncData() < b.period.Ceil() {
		return b
	}
	b.max = max(min(space, (maxLatency - b.latency).Floor()), 0)
	b.min = min(max((2*b.period - b.latency).Ceil(), 0), b.max)
	b.ready = true
	return b
}

// describable returns how many samples source group j can take before its
// tag queue overflows. One slot is kept for the silence tag of the cycle.
func (o *Operator) describable(j int) int {
	src := &o.sourceGroups[j]
	dst := o.metadataBuffer(j)
	if dst == nil || src.MetadataSink != src.Feeder {
		return math.MaxInt
	}
	g := &o.sinkGroups[src.Feeder]
	return g.Timestamp.Span(o.sinks.Buffer(g.MetadataTerminal), dst.TagSpace()-1)
}

// syncData returns minimum data of routed synchronous sink groups.
func (o *Operator) syncData() int {
	data := math.MaxInt
	for i := range o.sinkGroups {
		g := &o.sinkGroups[i]
		if g.Synchronous && g.Connected && o.routed(i) {
			data = min(data, o.sinks.Data(&g.Group))
		}
	}
	return data
}

// routed reports whether sink group i feeds a connected source group.
func (o *Operator) routed(i int) bool {
	r := o.sinkGroups[i].Route
	return r >= 0 && o.sourceGroups[r].Connected
}

// arm schedules the next wake-up, never sooner than a quarter period.
func (o *Operator) arm(d signal.Frac) {
	period := o.frac(o.config.Period)
	o.timer.Arm(max(d, period/4).Duration(o.config.SampleRate))
}
