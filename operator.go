package srcsync

import (
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/pipelined/srcsync/internal/group"
	"github.com/pipelined/srcsync/internal/route"
	"github.com/pipelined/srcsync/log"
	"github.com/pipelined/srcsync/metric"
	"github.com/pipelined/srcsync/signal"
)

// Clock returns monotonic time since an arbitrary origin.
type Clock interface {
	Now() time.Duration
}

// Timer is a single one-shot wake-up. Arming it cancels the pending one.
type Timer interface {
	Arm(d time.Duration)
	Cancel()
}

// LatencyProbe reports latency of the constant-rate hop that consumes
// output buffers.
type LatencyProbe interface {
	Latency() time.Duration
}

type systemClock struct {
	origin time.Time
}

func (c systemClock) Now() time.Duration {
	return time.Since(c.origin)
}

// nopTimer is used when the host drives cycles on its own schedule.
type nopTimer struct{}

func (nopTimer) Arm(time.Duration) {}

func (nopTimer) Cancel() {}

// Operator synchronizes sink groups with source groups. It has no locks and
// must be used from a single goroutine.
type Operator struct {
	uid    string
	log    logrus.FieldLogger
	config Config
	clock  Clock
	timer  Timer
	probe  LatencyProbe
	metric *metric.Metric

	state state
	// suspended is non-zero while a command changes topology.
	suspended int
	// dirty is set when topology must be derived again.
	dirty bool

	sinks        *group.Side
	sources      *group.Side
	sinkGroups   []group.Sink
	sourceGroups []group.Source
	// routes is indexed by source terminal.
	routes *route.Table

	// now is the clock reading of the running cycle.
	now       time.Duration
	latency   signal.Frac
	lastCycle signal.Time
	cycled    bool
	// consumed has a bit set for every sink group read in this cycle.
	consumed uint32

	notify        bool
	listeners     []listener
	stallOccurred uint32

	scratch []int32
}

// New creates an operator with one group per terminal and no routes.
func New(options ...Option) (*Operator, error) {
	o := Operator{
		uid:     xid.New().String(),
		config:  DefaultConfig(),
		clock:   systemClock{origin: time.Now()},
		timer:   nopTimer{},
		state:   idle,
		sinks:   group.NewSide(group.MaxTerminals),
		sources: group.NewSide(group.MaxTerminals),
	}
	for _, option := range options {
		if err := option(&o); err != nil {
			return nil, err
		}
	}
	if err := o.config.validate(); err != nil {
		return nil, err
	}
	if o.log == nil {
		o.log = log.GetLogger()
	}
	o.log = o.log.WithField("operator", o.uid)
	o.metric = metric.New(o.uid)
	o.routes = route.New(group.MaxTerminals, o.samples(o.config.Transition))

	defaults := make([]GroupSpec, group.MaxTerminals)
	for i := range defaults {
		defaults[i] = GroupSpec{Channels: 1 << uint(i)}
	}
	if err := o.SetSinkGroups(defaults); err != nil {
		return nil, err
	}
	if err := o.SetSourceGroups(defaults); err != nil {
		return nil, err
	}
	o.log.Debug("created")
	return &o, nil
}

// ID returns unique operator id.
func (o *Operator) ID() string {
	return o.uid
}

func (o *Operator) String() string {
	return fmt.Sprintf("operator %s", o.uid)
}

// Start enables processing.
func (o *Operator) Start() error {
	return o.apply(start)
}

// Stop disables processing and cancels the pending wake-up.
func (o *Operator) Stop() error {
	return o.apply(stop)
}

// Reset returns every group to its initial state. Routes in transition
// complete immediately.
func (o *Operator) Reset() error {
	return o.apply(reset)
}

// Destroy cancels the timer and releases all buffers. Destroyed operator
// rejects every command.
func (o *Operator) Destroy() error {
	return o.apply(destroy)
}

// apply runs the state transition for event e.
func (o *Operator) apply(e event) error {
	s, err := o.state.transition(o, e)
	if err != nil {
		o.log.WithField("state", o.state).Warnf("%v rejected: %v", e, err)
		return fmt.Errorf("%v while %v: %w", e, o.state, err)
	}
	if s != o.state {
		o.log.Debugf("%v -> %v", o.state, s)
	}
	o.state = s
	return nil
}

func (o *Operator) begin() error {
	if o.config.SampleRate == 0 {
		return fmt.Errorf("%w: sample rate is not set", ErrInvalidConfig)
	}
	o.clear()
	return nil
}

func (o *Operator) halt() {
	o.timer.Cancel()
}

// clear resets everything that cycles mutate.
func (o *Operator) clear() {
	o.latency, o.cycled = 0, false
	o.stallOccurred = 0
	o.routes.Settle()
	for i := range o.sinkGroups {
		g := &o.sinkGroups[i]
		g.Stall.Reset()
		g.Timestamp.Reset()
		if g.RateMatch != nil {
			g.RateMatch.Reset()
		}
	}
	for i := range o.sourceGroups {
		o.sourceGroups[i].History.Reset()
	}
	o.dirty = true
}

func (o *Operator) release() {
	o.timer.Cancel()
	for _, side := range []*group.Side{o.sinks, o.sources} {
		for i := range side.Terminals {
			if side.Terminals[i].Connected() {
				// terminal is connected, error is not possible.
				_ = side.Disconnect(i)
			}
		}
	}
	o.listeners = nil
	metric.Delete(o.uid)
	o.log.Debug("released")
}

// suspend stops cycles from observing topology while it changes.
func (o *Operator) suspend() {
	o.suspended++
}

// resume allows cycles again and requests topology derivation.
func (o *Operator) resume() {
	o.suspended--
	o.dirty = true
}

// Running reports whether the operator is started.
func (o *Operator) Running() bool {
	return o.running()
}

func (o *Operator) running() bool {
	_, ok := o.state.(running)
	return ok
}

// samples converts duration to whole samples at operator rate.
func (o *Operator) samples(d time.Duration) int {
	return signal.SamplesOf(o.config.SampleRate, d)
}

func (o *Operator) frac(d time.Duration) signal.Frac {
	return signal.FracOf(o.config.SampleRate, d)
}
