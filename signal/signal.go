// Package signal provides sample and time arithmetic used by the engine:
//	- wrap-safe fixed-point timestamps
//	- conversions between sample counts and durations
//	- sub-sample fractions for running estimates
//	- bit depth conversion for 32-bit sample words
package signal

import (
	"math"
	"time"
)

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// BitDepth is the number of significant bits in an exported sample.
type BitDepth int

// shift returns how far a full-scale 32-bit word is moved to fit bit depth.
func (bitDepth BitDepth) shift() uint {
	switch bitDepth {
	case BitDepth8:
		return 24
	case BitDepth16:
		return 16
	case BitDepth24:
		return 8
	default:
		return 0
	}
}

// Int32 is a non-interleaved signal of full-scale 32-bit sample words.
type Int32 [][]int32

// NumChannels returns number of channels in this signal.
func (words Int32) NumChannels() int {
	return len(words)
}

// Size returns number of samples per channel.
func (words Int32) Size() int {
	if words.NumChannels() == 0 {
		return 0
	}
	return len(words[0])
}

// AsInterInt converts the signal to interleaved ints of provided bit depth.
func (words Int32) AsInterInt(bitDepth BitDepth) []int {
	var numChannels int
	if numChannels = len(words); numChannels == 0 {
		return nil
	}
	shift := bitDepth.shift()
	ints := make([]int, words.Size()*numChannels)
	for j := range words {
		for i := range words[j] {
			ints[i*numChannels+j] = int(words[j][i] >> shift)
		}
	}
	return ints
}

// InterInt converts interleaved ints of provided bit depth to full-scale
// words. Trailing samples of an incomplete frame are dropped.
func InterInt(ints []int, numChannels int, bitDepth BitDepth) Int32 {
	if numChannels <= 0 {
		return nil
	}
	shift := bitDepth.shift()
	size := len(ints) / numChannels
	words := make(Int32, numChannels)
	for j := range words {
		words[j] = make([]int32, size)
		for i := range words[j] {
			words[j][i] = int32(ints[i*numChannels+j]) << shift
		}
	}
	return words
}

// Time is a coarse timestamp in microseconds. It wraps roughly every 71
// minutes, so only differences of nearby values are meaningful.
type Time uint32

// TimeOf converts a monotonic duration to a wrapped timestamp.
func TimeOf(d time.Duration) Time {
	return Time(uint32(d / time.Microsecond))
}

// Add returns t shifted by d.
func (t Time) Add(d time.Duration) Time {
	return t + Time(int32(d/time.Microsecond))
}

// Sub returns t-u. The result is correct as long as the values are less
// than half the wrap period apart.
func (t Time) Sub(u Time) time.Duration {
	return time.Duration(int32(t-u)) * time.Microsecond
}

// Before reports whether t is earlier than u.
func (t Time) Before(u Time) bool {
	return int32(t-u) < 0
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(samples * int64(time.Second) / int64(sampleRate))
}

// SamplesOf returns number of samples in duration d rounded to the nearest
// sample.
func SamplesOf(sampleRate int, d time.Duration) int {
	return int(math.Round(float64(d) * float64(sampleRate) / float64(time.Second)))
}

// fracBits is the number of fractional bits in Frac.
const fracBits = 16

// Frac is a sample count in Q16 fixed point.
type Frac int64

// FracOf returns the exact number of samples in duration d.
func FracOf(sampleRate int, d time.Duration) Frac {
	whole := int64(d) * int64(sampleRate)
	second := int64(time.Second)
	return Frac(whole/second<<fracBits + whole%second<<fracBits/second)
}

// Samples converts whole samples to Frac.
func Samples(n int) Frac {
	return Frac(int64(n) << fracBits)
}

// Floor returns whole samples rounded down.
func (f Frac) Floor() int {
	return int(f >> fracBits)
}

// Ceil returns whole samples rounded up.
func (f Frac) Ceil() int {
	return int((f + 1<<fracBits - 1) >> fracBits)
}

// Duration returns the duration of f samples.
func (f Frac) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	second := int64(time.Second)
	whole := int64(f) >> fracBits * second / int64(sampleRate)
	part := int64(f) & (1<<fracBits - 1) * second / int64(sampleRate) >> fracBits
	return time.Duration(whole + part)
}
