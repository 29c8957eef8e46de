package srcsync

import (
	"fmt"
	"time"

	"github.com/pipelined/srcsync/internal/group"
)

// BackKickMode selects when consumed sink terminals are reported in
// Touched.Sinks.
type BackKickMode = group.BackKick

// back-kick modes
const (
	BackKickLevel    = group.BackKickLevel
	BackKickEdge     = group.BackKickEdge
	BackKickDisabled = group.BackKickDisabled
)

// SetBackKickThreshold sets back-kick mode of sink group g. Threshold is
// the free space in samples.
func (o *Operator) SetBackKickThreshold(g int, mode BackKickMode, threshold int) error {
	if err := o.apply(adjust); err != nil {
		return err
	}
	if g < 0 || g >= len(o.sinkGroups) {
		return fmt.Errorf("%w: sink group %d", ErrInvalidGroup, g)
	}
	if mode < BackKickLevel || mode > BackKickDisabled || threshold < 0 {
		return fmt.Errorf("%w: back-kick mode %d threshold %d", ErrInvalidConfig, mode, threshold)
	}
	o.sinkGroups[g].BackKick = mode
	o.sinkGroups[g].BackKickThreshold = threshold
	return nil
}

// SetBufferSize changes the default terminal buffer size. It affects
// requirements returned for terminals connected afterwards.
func (o *Operator) SetBufferSize(size BufferSize) error {
	if err := o.apply(configure); err != nil {
		return err
	}
	if err := size.validate(); err != nil {
		return err
	}
	o.config.BufferSize = size
	return nil
}

// SetSampleRate changes the stream sample rate.
func (o *Operator) SetSampleRate(sampleRate int) error {
	if err := o.apply(configure); err != nil {
		return err
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, sampleRate)
	}
	o.setSampleRate(sampleRate)
	return nil
}

func (o *Operator) setSampleRate(sampleRate int) {
	o.config.SampleRate = sampleRate
	o.routes.SetTransition(o.samples(o.config.Transition))
	o.log.Debugf("sample rate %d", sampleRate)
}

// SetStallNotificationEnable turns delivery of notifications on or off.
func (o *Operator) SetStallNotificationEnable(enable bool) error {
	if err := o.apply(adjust); err != nil {
		return err
	}
	o.notify = enable
	return nil
}

// Status is a snapshot of the operator.
type Status struct {
	// Stalled has a bit set for every sink group substituting silence.
	Stalled uint32
	// StallOccurred has a bit set for every sink group that stalled since
	// the previous GetStatus call.
	StallOccurred uint32
	Running       bool
	Config        Config
	// Latency is the output latency estimate.
	Latency time.Duration
	Groups  []GroupStatus
}

// GroupStatus describes one sink group.
type GroupStatus struct {
	State string
	// InsertedSilence counts silence substituted during the current stall.
	InsertedSilence int
	// RateAdjust is the fraction the producer rate should be trimmed by.
	RateAdjust float64
}

// GetStatus returns the status and clears the stall occurred mask.
func (o *Operator) GetStatus() Status {
	s := Status{
		StallOccurred: o.stallOccurred,
		Running:       o.running(),
		Config:        o.config,
		Latency:       o.latency.Duration(o.config.SampleRate),
		Groups:        make([]GroupStatus, len(o.sinkGroups)),
	}
	for i := range o.sinkGroups {
		g := &o.sinkGroups[i]
		if g.Stalled() {
			s.Stalled |= 1 << uint(i)
		}
		s.Groups[i].State = g.Stall.State.String()
		s.Groups[i].InsertedSilence = g.Stall.InsertedSilence
		if g.RateMatch != nil {
			s.Groups[i].RateAdjust = g.RateMatch.Adjust()
		}
	}
	o.stallOccurred = 0
	return s
}
