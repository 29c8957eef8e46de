package signal_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pipelined/srcsync/signal"
)

func TestAsInterInt(t *testing.T) {
	tests := []struct {
		description string
		words       signal.Int32
		bitDepth    signal.BitDepth
		expected    []int
	}{
		{
			description: "stereo 32 bit",
			words:       signal.Int32{{1, 2, 3}, {4, 5, 6}},
			bitDepth:    signal.BitDepth32,
			expected:    []int{1, 4, 2, 5, 3, 6},
		},
		{
			description: "full scale to 16 bit",
			words:       signal.Int32{{math.MaxInt32, math.MinInt32}},
			bitDepth:    signal.BitDepth16,
			expected:    []int{math.MaxInt16, math.MinInt16},
		},
		{
			description: "empty",
			words:       nil,
			bitDepth:    signal.BitDepth16,
			expected:    nil,
		},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, test.words.AsInterInt(test.bitDepth), test.description)
	}
}

func TestInterInt(t *testing.T) {
	tests := []struct {
		description string
		ints        []int
		numChannels int
		bitDepth    signal.BitDepth
		expected    signal.Int32
	}{
		{
			description: "stereo 32 bit",
			ints:        []int{1, 4, 2, 5, 3, 6},
			numChannels: 2,
			bitDepth:    signal.BitDepth32,
			expected:    signal.Int32{{1, 2, 3}, {4, 5, 6}},
		},
		{
			description: "16 bit to full scale",
			ints:        []int{1, -1},
			numChannels: 1,
			bitDepth:    signal.BitDepth16,
			expected:    signal.Int32{{1 << 16, -1 << 16}},
		},
		{
			description: "incomplete frame",
			ints:        []int{1, 2, 3},
			numChannels: 2,
			bitDepth:    signal.BitDepth32,
			expected:    signal.Int32{{1}, {2}},
		},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, signal.InterInt(test.ints, test.numChannels, test.bitDepth), test.description)
	}
}

func TestTimeWrap(t *testing.T) {
	near := signal.Time(math.MaxUint32 - 500)
	later := near.Add(time.Millisecond)
	assert.Equal(t, time.Millisecond, later.Sub(near))
	assert.Equal(t, -time.Millisecond, near.Sub(later))
	assert.True(t, near.Before(later))
	assert.False(t, later.Before(near))
}

func TestSampleConversions(t *testing.T) {
	assert.Equal(t, 2500*time.Microsecond, signal.DurationOf(48000, 120))
	assert.Equal(t, 120, signal.SamplesOf(48000, 2500*time.Microsecond))
	assert.Equal(t, 480, signal.SamplesOf(48000, 10*time.Millisecond))
	assert.Equal(t, time.Duration(0), signal.DurationOf(0, 120))

	f := signal.FracOf(44100, time.Millisecond)
	assert.Equal(t, 44, f.Floor())
	assert.Equal(t, 45, f.Ceil())
	assert.Equal(t, 120, signal.Samples(120).Floor())
	assert.Equal(t, 120, signal.Samples(120).Ceil())
	assert.Equal(t, 2500*time.Microsecond, signal.Samples(120).Duration(48000))
}
