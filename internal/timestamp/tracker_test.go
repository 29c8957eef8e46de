package timestamp_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/srcsync/cbuffer"
	"github.com/pipelined/srcsync/internal/timestamp"
	"github.com/pipelined/srcsync/signal"
)

const (
	sampleRate = 48000
	restartGap = 500 * time.Millisecond
)

func newBuffer(tags ...cbuffer.Tag) *cbuffer.Buffer {
	b := cbuffer.New(4096, cbuffer.WithMetadata(16))
	for _, tag := range tags {
		b.WriteSilence(tag.Length)
		if err := b.AppendTag(tag); err != nil {
			panic(err)
		}
	}
	return b
}

func TestForwardSplitsTags(t *testing.T) {
	src := newBuffer(
		cbuffer.Tag{Length: 100, Type: cbuffer.TagPlayTime, Timestamp: 1000, StreamStart: true},
		cbuffer.Tag{Length: 50, Type: cbuffer.TagPlayTime, Timestamp: 5000, EOF: true},
	)
	dst := cbuffer.New(4096, cbuffer.WithMetadata(16))
	var tr timestamp.Tracker

	assert.Equal(t, 0, tr.Forward(src, dst, 60, sampleRate, 0, false))
	assert.Equal(t, 0, tr.Forward(src, dst, 70, sampleRate, 0, false))
	assert.Equal(t, 0, tr.Forward(src, dst, 20, sampleRate, 0, false))

	// 60 samples at 48kHz take 1250us.
	assert.Equal(t, []cbuffer.Tag{
		{Length: 60, Type: cbuffer.TagPlayTime, Timestamp: 1000, StreamStart: true},
		{Length: 40, Type: cbuffer.TagPlayTime, Timestamp: 1000 + 1250},
		{Length: 30, Type: cbuffer.TagPlayTime, Timestamp: 5000},
		{Length: 20, Type: cbuffer.TagPlayTime, Timestamp: 5000 + 625, EOF: true},
	}, dst.Tags())

	var total int
	for _, tag := range dst.Tags() {
		total += tag.Length
	}
	assert.Equal(t, 150, total)
	expected, ok := tr.Expected()
	assert.True(t, ok)
	assert.Equal(t, signal.Time(5000+1041), expected)
}

func TestSpan(t *testing.T) {
	tests := []struct {
		description string
		forwarded   int
		slots       int
		expected    int
	}{
		{
			description: "no slots",
			slots:       0,
			expected:    0,
		},
		{
			description: "first tag only",
			slots:       1,
			expected:    100,
		},
		{
			description: "all tags, no slot for untagged samples",
			slots:       3,
			expected:    180,
		},
		{
			description: "unbounded",
			slots:       4,
			expected:    math.MaxInt,
		},
		{
			description: "remainder of the current tag",
			forwarded:   60,
			slots:       2,
			expected:    40 + 50,
		},
	}
	for _, test := range tests {
		src := newBuffer(
			cbuffer.Tag{Length: 100, Type: cbuffer.TagPlayTime, Timestamp: 1000},
			cbuffer.Tag{Length: 0, EOF: true},
			cbuffer.Tag{Length: 50, Type: cbuffer.TagPlayTime, Timestamp: 5000},
			cbuffer.Tag{Length: 30, Type: cbuffer.TagPlayTime, Timestamp: 9000},
		)
		var tr timestamp.Tracker
		if test.forwarded > 0 {
			tr.Forward(src, nil, test.forwarded, sampleRate, 0, false)
		}
		assert.Equal(t, test.expected, tr.Span(src, test.slots), test.description)
	}
}

func TestDropKeepsEOF(t *testing.T) {
	src := newBuffer(
		cbuffer.Tag{Length: 10, Type: cbuffer.TagArrival, Timestamp: 0, EOF: true},
		cbuffer.Tag{Length: 10, Type: cbuffer.TagArrival, Timestamp: 10000},
	)
	dst := cbuffer.New(64, cbuffer.WithMetadata(4))
	var tr timestamp.Tracker

	tr.Drop(src, 10, sampleRate)
	assert.True(t, tr.EOFPending())
	tr.Forward(src, dst, 4, sampleRate, 0, false)
	assert.False(t, tr.EOFPending())

	tags := dst.Tags()
	require.Len(t, tags, 1)
	assert.True(t, tags[0].EOF)
	assert.Equal(t, 4, tags[0].Length)
}

func TestProvideTimestamp(t *testing.T) {
	src := cbuffer.New(64)
	src.WriteSilence(10)
	dst := cbuffer.New(64, cbuffer.WithMetadata(4))
	var tr timestamp.Tracker

	tr.Forward(src, dst, 10, sampleRate, 777, true)
	assert.Equal(t, []cbuffer.Tag{{Length: 10, Type: cbuffer.TagArrival, Timestamp: 777}}, dst.Tags())

	require.NoError(t, timestamp.Silence(dst, 5))
	assert.Equal(t, cbuffer.Tag{Length: 5, Void: true}, dst.Tags()[1])
	assert.NoError(t, timestamp.Silence(cbuffer.New(8), 5))
}

func TestForwardFullQueue(t *testing.T) {
	src := newBuffer(
		cbuffer.Tag{Length: 1, Type: cbuffer.TagArrival, Timestamp: 0},
		cbuffer.Tag{Length: 1, Type: cbuffer.TagArrival, Timestamp: 100},
	)
	dst := cbuffer.New(8, cbuffer.WithMetadata(1))
	var tr timestamp.Tracker
	assert.Equal(t, 1, tr.Forward(src, dst, 2, sampleRate, 0, false))
}

func TestClassify(t *testing.T) {
	// prediction after forwarding 480 samples stamped 0 is 10ms.
	primed := func() (timestamp.Tracker, *cbuffer.Buffer) {
		var tr timestamp.Tracker
		src := newBuffer(cbuffer.Tag{Length: 480, Type: cbuffer.TagPlayTime})
		tr.Forward(src, nil, 480, sampleRate, 0, false)
		return tr, src
	}
	tests := []struct {
		description string
		tracker     func() (timestamp.Tracker, *cbuffer.Buffer)
		next        *cbuffer.Tag
		expected    timestamp.Classification
	}{
		{
			description: "no metadata",
			tracker: func() (timestamp.Tracker, *cbuffer.Buffer) {
				return timestamp.Tracker{}, cbuffer.New(8)
			},
			expected: timestamp.Classification{Kind: timestamp.Unknown},
		},
		{
			description: "waiting for tag",
			tracker:     primed,
			expected:    timestamp.Classification{Kind: timestamp.WaitingForTag},
		},
		{
			description: "untimed tag",
			tracker:     primed,
			next:        &cbuffer.Tag{Length: 10},
			expected:    timestamp.Classification{Kind: timestamp.Unknown},
		},
		{
			description: "continuous",
			tracker:     primed,
			next:        &cbuffer.Tag{Length: 10, Type: cbuffer.TagPlayTime, Timestamp: 10000},
			expected:    timestamp.Classification{Kind: timestamp.Gap},
		},
		{
			description: "late by 480 samples",
			tracker:     primed,
			next:        &cbuffer.Tag{Length: 10, Type: cbuffer.TagPlayTime, Timestamp: 20000},
			expected:    timestamp.Classification{Kind: timestamp.Gap, Gap: 480},
		},
		{
			description: "early by 48 samples",
			tracker:     primed,
			next:        &cbuffer.Tag{Length: 10, Type: cbuffer.TagPlayTime, Timestamp: 9000},
			expected:    timestamp.Classification{Kind: timestamp.Gap, Gap: -48},
		},
		{
			description: "type change",
			tracker:     primed,
			next:        &cbuffer.Tag{Length: 10, Type: cbuffer.TagArrival, Timestamp: 10000},
			expected:    timestamp.Classification{Kind: timestamp.Restart},
		},
		{
			description: "stream start",
			tracker:     primed,
			next:        &cbuffer.Tag{Length: 10, Type: cbuffer.TagPlayTime, Timestamp: 10000, StreamStart: true},
			expected:    timestamp.Classification{Kind: timestamp.Restart},
		},
		{
			description: "gap over limit",
			tracker:     primed,
			next:        &cbuffer.Tag{Length: 10, Type: cbuffer.TagPlayTime, Timestamp: 10000 + 600000},
			expected:    timestamp.Classification{Kind: timestamp.Restart},
		},
		{
			description: "no prediction",
			tracker: func() (timestamp.Tracker, *cbuffer.Buffer) {
				return timestamp.Tracker{}, newBuffer()
			},
			next:     &cbuffer.Tag{Length: 10, Type: cbuffer.TagPlayTime, Timestamp: 10000},
			expected: timestamp.Classification{Kind: timestamp.Restart},
		},
	}
	for _, test := range tests {
		tr, src := test.tracker()
		if test.next != nil {
			require.NoError(t, src.AppendTag(*test.next), test.description)
		}
		assert.Equal(t, test.expected, tr.Classify(src, sampleRate, restartGap), test.description)
	}
}

func TestClassifyMidTag(t *testing.T) {
	src := newBuffer(cbuffer.Tag{Length: 100, Type: cbuffer.TagArrival, Timestamp: 0})
	var tr timestamp.Tracker
	tr.Drop(src, 40, sampleRate)
	assert.Equal(t, timestamp.Classification{Kind: timestamp.Gap}, tr.Classify(src, sampleRate, restartGap))

	tr.Reset()
	src = newBuffer(cbuffer.Tag{Length: 100})
	tr.Drop(src, 40, sampleRate)
	assert.Equal(t, timestamp.Classification{Kind: timestamp.Unknown}, tr.Classify(src, sampleRate, restartGap))
}
