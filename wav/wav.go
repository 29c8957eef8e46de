// Package wav captures operator output into wav files and loads wav files
// to feed producers.
package wav

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pipelined/srcsync/signal"
)

// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
var ErrUnsupportedBitDepth = errors.New("only 16 and 32 bit depth is supported")

// pcm is the wav audio format of integer samples.
const pcm = 1

// Sink saves captured words to a wav file.
type Sink struct {
	path     string
	bitDepth signal.BitDepth
	file     *os.File
	encoder  *wav.Encoder
	ib       *audio.IntBuffer
}

// NewSink creates the file and writes the wav header.
func NewSink(path string, sampleRate, numChannels int, bitDepth signal.BitDepth) (*Sink, error) {
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		return nil, ErrUnsupportedBitDepth
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Sink{
		path:     path,
		bitDepth: bitDepth,
		file:     f,
		encoder:  wav.NewEncoder(f, sampleRate, int(bitDepth), numChannels, pcm),
		ib: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: numChannels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: int(bitDepth),
		},
	}, nil
}

// Write appends words to the file. Number of channels must match the one
// provided to NewSink.
func (s *Sink) Write(words signal.Int32) error {
	if words.NumChannels() != s.ib.Format.NumChannels {
		return fmt.Errorf("%s: %d channels written to %d channel file", s.path, words.NumChannels(), s.ib.Format.NumChannels)
	}
	s.ib.Data = words.AsInterInt(s.bitDepth)
	return s.encoder.Write(s.ib)
}

// Close finalizes the header and closes the file.
func (s *Sink) Close() error {
	if err := s.encoder.Close(); err != nil {
		return err
	}
	return s.file.Close()
}

// Load reads the whole wav file. It returns full-scale words and the
// sample rate of the file.
func Load(path string) (signal.Int32, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: wav is not valid", path)
	}
	bitDepth := signal.BitDepth(decoder.BitDepth)
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		return nil, 0, ErrUnsupportedBitDepth
	}
	ib, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return signal.InterInt(ib.Data, ib.Format.NumChannels, bitDepth), int(decoder.SampleRate), nil
}
