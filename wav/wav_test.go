package wav_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/srcsync/signal"
	"github.com/pipelined/srcsync/wav"
)

func TestSinkLoad(t *testing.T) {
	tests := []struct {
		description string
		bitDepth    signal.BitDepth
		writes      []signal.Int32
		expected    signal.Int32
	}{
		{
			description: "stereo 16 bit",
			bitDepth:    signal.BitDepth16,
			writes: []signal.Int32{
				{{1 << 16, 2 << 16}, {-1 << 16, -2 << 16}},
				{{3 << 16}, {-3 << 16}},
			},
			expected: signal.Int32{{1 << 16, 2 << 16, 3 << 16}, {-1 << 16, -2 << 16, -3 << 16}},
		},
		{
			description: "mono 32 bit",
			bitDepth:    signal.BitDepth32,
			writes: []signal.Int32{
				{{1000, 1001, 1002}},
			},
			expected: signal.Int32{{1000, 1001, 1002}},
		},
	}
	for _, test := range tests {
		path := filepath.Join(t.TempDir(), "out.wav")
		sink, err := wav.NewSink(path, 48000, test.expected.NumChannels(), test.bitDepth)
		require.NoError(t, err, test.description)
		for _, words := range test.writes {
			require.NoError(t, sink.Write(words), test.description)
		}
		require.NoError(t, sink.Close(), test.description)

		words, sampleRate, err := wav.Load(path)
		require.NoError(t, err, test.description)
		assert.Equal(t, 48000, sampleRate, test.description)
		assert.Equal(t, test.expected, words, test.description)
	}
}

func TestSinkErrors(t *testing.T) {
	_, err := wav.NewSink(filepath.Join(t.TempDir(), "out.wav"), 48000, 1, signal.BitDepth24)
	assert.ErrorIs(t, err, wav.ErrUnsupportedBitDepth)

	sink, err := wav.NewSink(filepath.Join(t.TempDir(), "out.wav"), 48000, 2, signal.BitDepth16)
	require.NoError(t, err)
	assert.Error(t, sink.Write(signal.Int32{{1}}))
	require.NoError(t, sink.Close())

	_, _, err = wav.Load(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}
