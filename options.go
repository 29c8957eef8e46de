package srcsync

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pipelined/srcsync/signal"
)

// Config holds timing parameters of the operator.
type Config struct {
	// SampleRate of every stream, zero until set by a route or command.
	SampleRate int
	// Period is the nominal interval between process cycles.
	Period time.Duration
	// MaxLatency bounds data queued in output buffers.
	MaxLatency time.Duration
	// Transition is the crossfade length of route changes.
	Transition time.Duration
	// DefaultFill is the silence inserted after a stall of unknown length.
	DefaultFill time.Duration
	// MaxDiscard limits how long stale input is discarded before restart.
	MaxDiscard time.Duration
	// RestartGap is the largest timestamp jump treated as a gap.
	RestartGap time.Duration
	// RateMatchWindow is the interval rate drift is measured over.
	RateMatchWindow time.Duration
	// BufferSize is the default terminal buffer size.
	BufferSize BufferSize
	// MetadataSlots is the tag queue capacity of metadata buffers.
	MetadataSlots int
}

// BufferSize is expressed either in samples or in time.
type BufferSize struct {
	Samples  int
	Duration time.Duration
}

func (s BufferSize) samples(sampleRate int) int {
	if s.Samples > 0 {
		return s.Samples
	}
	return signal.SamplesOf(sampleRate, s.Duration)
}

// DefaultConfig returns configuration for 48kHz streams with 2.5ms period.
func DefaultConfig() Config {
	return Config{
		SampleRate:      48000,
		Period:          2500 * time.Microsecond,
		MaxLatency:      10 * time.Millisecond,
		Transition:      2 * time.Millisecond,
		DefaultFill:     5 * time.Millisecond,
		MaxDiscard:      100 * time.Millisecond,
		RestartGap:      500 * time.Millisecond,
		RateMatchWindow: time.Second,
		BufferSize:      BufferSize{Duration: 20 * time.Millisecond},
		MetadataSlots:   32,
	}
}

// validate checks that timing parameters are consistent.
func (c Config) validate() error {
	switch {
	case c.SampleRate < 0:
		return fmt.Errorf("%w: negative sample rate %d", ErrInvalidConfig, c.SampleRate)
	case c.Period <= 0:
		return fmt.Errorf("%w: period %v", ErrInvalidConfig, c.Period)
	case c.MaxLatency < 2*c.Period:
		return fmt.Errorf("%w: max latency %v below two periods", ErrInvalidConfig, c.MaxLatency)
	case c.Transition < 0, c.DefaultFill < 0, c.MaxDiscard < 0, c.RestartGap < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	case c.RateMatchWindow <= 0:
		return fmt.Errorf("%w: rate match window %v", ErrInvalidConfig, c.RateMatchWindow)
	case c.MetadataSlots < 1:
		return fmt.Errorf("%w: metadata slots %d", ErrInvalidConfig, c.MetadataSlots)
	}
	return c.BufferSize.validate()
}

func (s BufferSize) validate() error {
	if (s.Samples > 0) == (s.Duration > 0) || s.Samples < 0 || s.Duration < 0 {
		return fmt.Errorf("%w: buffer size needs either samples or duration", ErrInvalidConfig)
	}
	return nil
}

// Option configures the operator.
type Option func(*Operator) error

// WithConfig replaces the whole configuration.
func WithConfig(c Config) Option {
	return func(o *Operator) error {
		o.config = c
		return nil
	}
}

// WithSampleRate sets the stream sample rate.
func WithSampleRate(sampleRate int) Option {
	return func(o *Operator) error {
		o.config.SampleRate = sampleRate
		return nil
	}
}

// WithPeriod sets the nominal cycle interval.
func WithPeriod(d time.Duration) Option {
	return func(o *Operator) error {
		o.config.Period = d
		return nil
	}
}

// WithMaxLatency sets the output latency bound.
func WithMaxLatency(d time.Duration) Option {
	return func(o *Operator) error {
		o.config.MaxLatency = d
		return nil
	}
}

// WithTransition sets the crossfade length of route changes.
func WithTransition(d time.Duration) Option {
	return func(o *Operator) error {
		o.config.Transition = d
		return nil
	}
}

// WithStallRecovery sets default fill, discard limit and restart gap.
func WithStallRecovery(defaultFill, maxDiscard, restartGap time.Duration) Option {
	return func(o *Operator) error {
		o.config.DefaultFill = defaultFill
		o.config.MaxDiscard = maxDiscard
		o.config.RestartGap = restartGap
		return nil
	}
}

// WithLogger sets the logger. Operator adds its id field.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Operator) error {
		if l == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidConfig)
		}
		o.log = l
		return nil
	}
}

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(o *Operator) error {
		if c == nil {
			return fmt.Errorf("%w: nil clock", ErrInvalidConfig)
		}
		o.clock = c
		return nil
	}
}

// WithTimer sets the wake-up timer.
func WithTimer(t Timer) Option {
	return func(o *Operator) error {
		if t == nil {
			return fmt.Errorf("%w: nil timer", ErrInvalidConfig)
		}
		o.timer = t
		return nil
	}
}

// WithLatencyProbe makes the operator measure downstream latency instead
// of inferring it from output occupancy.
func WithLatencyProbe(p LatencyProbe) Option {
	return func(o *Operator) error {
		o.probe = p
		return nil
	}
}
