// Package cbuffer provides a single-producer single-consumer ring buffer of
// 32-bit sample words with an optional queue of metadata tags.
//
// Buffers are not safe for concurrent use. In the engine every buffer is
// touched only by the goroutine that runs the host scheduler.
package cbuffer

import "errors"

// ErrTagsFull is returned when the tag queue has no free slot.
var ErrTagsFull = errors.New("tag queue is full")

// Buffer is a ring of sample words.
type Buffer struct {
	words []int32
	read  int
	count int

	metadata bool
	tags     []Tag
	tagHead  int
	tagCount int
}

// Option configures a new buffer.
type Option func(*Buffer)

// WithMetadata enables a tag queue of provided capacity.
func WithMetadata(maxTags int) Option {
	return func(b *Buffer) {
		if maxTags < 1 {
			maxTags = 1
		}
		b.metadata = true
		b.tags = make([]Tag, maxTags)
	}
}

// New allocates a buffer that holds size words.
func New(size int, options ...Option) *Buffer {
	if size < 1 {
		size = 1
	}
	b := &Buffer{words: make([]int32, size)}
	for _, option := range options {
		option(b)
	}
	return b
}

// Size returns capacity in words.
func (b *Buffer) Size() int {
	return len(b.words)
}

// Data returns number of words available for reading.
func (b *Buffer) Data() int {
	return b.count
}

// Space returns number of words that can be written.
func (b *Buffer) Space() int {
	return len(b.words) - b.count
}

// Write appends words and returns number of words written.
func (b *Buffer) Write(p []int32) int {
	n := min(len(p), b.Space())
	w := (b.read + b.count) % len(b.words)
	first := copy(b.words[w:], p[:n])
	copy(b.words, p[first:n])
	b.count += n
	return n
}

// WriteSilence appends n zero words and returns number of words written.
func (b *Buffer) WriteSilence(n int) int {
	n = min(n, b.Space())
	w := (b.read + b.count) % len(b.words)
	for i := 0; i < n; i++ {
		b.words[w] = 0
		if w++; w == len(b.words) {
			w = 0
		}
	}
	b.count += n
	return n
}

// Peek copies words into p without consuming them.
func (b *Buffer) Peek(p []int32) int {
	n := min(len(p), b.count)
	first := copy(p[:n], b.words[b.read:])
	copy(p[first:n], b.words)
	return n
}

// Read copies words into p and consumes them.
func (b *Buffer) Read(p []int32) int {
	n := b.Peek(p)
	b.Advance(n)
	return n
}

// Advance consumes up to n words and returns the number consumed.
func (b *Buffer) Advance(n int) int {
	n = max(min(n, b.count), 0)
	b.read = (b.read + n) % len(b.words)
	b.count -= n
	return n
}

// Reset drops all words and tags.
func (b *Buffer) Reset() {
	b.read, b.count = 0, 0
	b.tagHead, b.tagCount = 0, 0
}

// Metadata reports whether the buffer carries tags.
func (b *Buffer) Metadata() bool {
	return b.metadata
}
