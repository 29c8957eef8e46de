// Package mock provides manual clocks, timers, producers and consumers to
// drive the operator in tests and simulations.
package mock

import (
	"time"

	"github.com/pipelined/srcsync/cbuffer"
	"github.com/pipelined/srcsync/signal"
)

// Clock is a manually advanced clock.
type Clock struct {
	now time.Duration
}

// Now returns current time.
func (c *Clock) Now() time.Duration {
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.now += d
}

// Timer records wake-ups requested by the operator.
type Timer struct {
	// Armed is true while a wake-up is pending.
	Armed bool
	// Last is the most recent armed delay.
	Last    time.Duration
	Arms    int
	Cancels int
}

// Arm implements srcsync.Timer.
func (t *Timer) Arm(d time.Duration) {
	t.Armed, t.Last = true, d
	t.Arms++
}

// Cancel implements srcsync.Timer.
func (t *Timer) Cancel() {
	t.Armed = false
	t.Cancels++
}

// Producer writes into the buffers of one sink group.
type Producer struct {
	counter
	Buffers []*cbuffer.Buffer
	// Value of the first sample, every next sample is incremented when
	// Ramp is set.
	Value int32
	Ramp  bool
	// Source overrides Value and Ramp. Buffer i plays channel i of the
	// source in a loop.
	Source signal.Int32
	// TagType is used for buffers with metadata.
	TagType    cbuffer.TagType
	SampleRate int
	// Origin is the timestamp of the first sample.
	Origin time.Duration
	// position is the timeline position in samples.
	position int
	// started is set once the first tag is written.
	started bool
	Hooks
}

// Produce writes n samples into every buffer. Nothing is written while
// stalled. It returns number of samples written.
func (m *Producer) Produce(n int) int {
	if m.Stalled {
		return 0
	}
	tagged := m.tagged()
	for _, b := range m.Buffers {
		n = min(n, b.Space())
	}
	if tagged != nil && tagged.TagSpace() == 0 {
		n = 0
	}
	if n == 0 {
		return 0
	}
	ts := signal.TimeOf(m.Origin + signal.DurationOf(m.SampleRate, int64(m.position)))
	for i, b := range m.Buffers {
		b.Write(m.words(i, n))
	}
	if tagged != nil {
		// tag space is checked above.
		_ = tagged.AppendTag(cbuffer.Tag{
			Length:      n,
			Type:        m.TagType,
			Timestamp:   ts,
			StreamStart: !m.started,
		})
	}
	m.started = true
	m.position += n
	m.advance(n)
	return n
}

// words returns next n samples of buffer k.
func (m *Producer) words(k, n int) []int32 {
	words := make([]int32, n)
	if m.Source.Size() > 0 {
		channel := m.Source[k%m.Source.NumChannels()]
		for i := range words {
			words[i] = channel[(m.position+i)%len(channel)]
		}
		return words
	}
	for i := range words {
		words[i] = m.Value
		if m.Ramp {
			words[i] += int32(m.position + i)
		}
	}
	return words
}

// tagged returns the first buffer with metadata. Only that buffer
// carries tags.
func (m *Producer) tagged() *cbuffer.Buffer {
	for _, b := range m.Buffers {
		if b.Metadata() {
			return b
		}
	}
	return nil
}

// Skip moves the timeline forward without writing, as if samples were lost
// upstream.
func (m *Producer) Skip(n int) {
	m.position += n
}

// Consumer reads from the buffers of one source group.
type Consumer struct {
	counter
	Buffers []*cbuffer.Buffer
	// Discard drops samples instead of capturing them.
	Discard bool
	signal  signal.Int32
	tags    []cbuffer.Tag
	// offset is the number of consumed samples of the head tag.
	offset int
}

// Consume reads up to n samples from every buffer and returns the number
// read.
func (m *Consumer) Consume(n int) int {
	for _, b := range m.Buffers {
		n = min(n, b.Data())
	}
	if n <= 0 {
		return 0
	}
	if m.signal == nil {
		m.signal = make(signal.Int32, len(m.Buffers))
	}
	tagged := false
	for i, b := range m.Buffers {
		words := make([]int32, n)
		b.Read(words)
		if !m.Discard {
			m.signal[i] = append(m.signal[i], words...)
		}
		if b.Metadata() && !tagged {
			m.takeTags(b, n)
			tagged = true
		}
	}
	m.advance(n)
	return n
}

// takeTags removes tags of n consumed samples.
func (m *Consumer) takeTags(b *cbuffer.Buffer, n int) {
	n += m.offset
	for {
		tag, ok := b.PeekTag()
		if !ok || tag.Length > n {
			break
		}
		b.PopTag()
		m.tags = append(m.tags, tag)
		n -= tag.Length
	}
	m.offset = n
}

// Signal returns captured samples.
func (m *Consumer) Signal() signal.Int32 {
	return m.signal
}

// Tags returns tags of fully consumed spans of the first buffer with
// metadata.
func (m *Consumer) Tags() []cbuffer.Tag {
	return m.tags
}

// Reset drops captured data and counters.
func (m *Consumer) Reset() {
	m.signal, m.tags, m.offset = nil, nil, 0
	m.reset()
}

// Hooks allows to mock producer conditions.
type Hooks struct {
	// Stalled producer writes nothing.
	Stalled bool
}

// counter counts calls and samples.
type counter struct {
	calls   int
	samples int
}

// advance counter's metrics.
func (c *counter) advance(size int) {
	c.calls++
	c.samples = c.samples + size
}

// Count returns calls and samples metrics.
func (c *counter) Count() (int, int) {
	return c.calls, c.samples
}

// reset resets counter's metrics.
func (c *counter) reset() {
	c.calls, c.samples = 0, 0
}
