// Package timestamp moves metadata tags along with the samples they
// describe and predicts the timestamp of the next input sample.
package timestamp

import (
	"fmt"
	"math"
	"time"

	"github.com/pipelined/srcsync/cbuffer"
	"github.com/pipelined/srcsync/signal"
)

// Kind is the outcome of classifying the head of an input.
type Kind int

const (
	// Unknown means no usable timing information.
	Unknown Kind = iota
	// Gap means input continues Gap samples after the prediction.
	Gap
	// WaitingForTag means samples are present but their tag is not.
	WaitingForTag
	// Restart means the input timeline was replaced.
	Restart
)

func (k Kind) String() string {
	switch k {
	case Unknown:
		return "unknown"
	case Gap:
		return "gap"
	case WaitingForTag:
		return "waiting-for-tag"
	case Restart:
		return "restart"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Classification describes discontinuity of the input timeline. Gap is
// meaningful only for kind Gap and is negative when input came early.
type Classification struct {
	Kind Kind
	Gap  int
}

// Tracker follows the tag queue of one input.
type Tracker struct {
	// current is the last tag removed from the input.
	current cbuffer.Tag
	// beforeNext is the number of samples of current not yet consumed.
	beforeNext int
	valid      bool
	expected   signal.Time
	typ        cbuffer.TagType
	// eof is set when a dropped tag carried end of stream.
	eof bool
}

// Reset forgets the current tag and the prediction.
func (t *Tracker) Reset() {
	*t = Tracker{}
}

// Expected returns predicted timestamp of the next input sample.
func (t *Tracker) Expected() (signal.Time, bool) {
	return t.expected, t.valid
}

// Type returns tag type the prediction refers to.
func (t *Tracker) Type() cbuffer.TagType {
	return t.typ
}

// EOFPending reports whether an end of stream waits to be forwarded.
func (t *Tracker) EOFPending() bool {
	return t.eof
}

// Forward moves tags describing n samples from src to dst. Pieces of tags
// are rewritten to cover exactly the forwarded samples. When provide is
// set, untimed pieces get an arrival timestamp of now. It returns number of
// pieces dst could not accept.
func (t *Tracker) Forward(src, dst *cbuffer.Buffer, n, sampleRate int, now signal.Time, provide bool) int {
	var dropped int
	t.consume(src, n, sampleRate, func(piece cbuffer.Tag) {
		if t.eof {
			piece.EOF, t.eof = true, false
		}
		if provide && piece.Type == cbuffer.TagNone && !piece.Void {
			piece.Type, piece.Timestamp = cbuffer.TagArrival, now
		}
		if dst == nil || !dst.Metadata() {
			return
		}
		if err := dst.AppendTag(piece); err != nil {
			dropped++
		}
	})
	return dropped
}

// Span returns how many samples of src Forward can describe with at most
// slots tags. It returns math.MaxInt when the slots are never exhausted.
func (t *Tracker) Span(src *cbuffer.Buffer, slots int) int {
	if slots <= 0 {
		return 0
	}
	var n int
	if t.beforeNext > 0 {
		n, slots = t.beforeNext, slots-1
	}
	for i := 0; src != nil; i++ {
		tag, ok := src.PeekTagAt(i)
		if !ok {
			break
		}
		if tag.Length == 0 {
			continue
		}
		if slots == 0 {
			return n
		}
		n, slots = n+tag.Length, slots-1
	}
	if slots == 0 {
		// untagged samples would need one more.
		return n
	}
	return math.MaxInt
}

// Drop consumes tags describing n discarded samples. End of stream is kept
// and attached to the next forwarded piece.
func (t *Tracker) Drop(src *cbuffer.Buffer, n, sampleRate int) {
	t.consume(src, n, sampleRate, func(piece cbuffer.Tag) {
		if piece.EOF {
			t.eof = true
		}
	})
}

// Silence appends a void tag for n samples of inserted silence.
func Silence(dst *cbuffer.Buffer, n int) error {
	if n <= 0 || dst == nil || !dst.Metadata() {
		return nil
	}
	return dst.AppendTag(cbuffer.Tag{Length: n, Void: true})
}

// consume pops tags in lock-step with n samples and calls fn for every
// piece.
func (t *Tracker) consume(src *cbuffer.Buffer, n, sampleRate int, fn func(cbuffer.Tag)) {
	for n > 0 {
		if t.beforeNext == 0 {
			tag, ok := t.pop(src)
			if !ok {
				// samples without a tag.
				fn(cbuffer.Tag{Length: n})
				return
			}
			t.current, t.beforeNext = tag, tag.Length
		}
		k := min(n, t.beforeNext)
		offset := t.current.Length - t.beforeNext
		piece := t.current
		piece.Length = k
		piece.Timestamp = t.current.Timestamp.Add(signal.DurationOf(sampleRate, int64(offset)))
		piece.StreamStart = t.current.StreamStart && offset == 0
		piece.EOF = t.current.EOF && k == t.beforeNext
		if piece.Type != cbuffer.TagNone {
			t.typ = piece.Type
			t.expected = piece.Timestamp.Add(signal.DurationOf(sampleRate, int64(k)))
			t.valid = true
		}
		fn(piece)
		t.beforeNext -= k
		n -= k
	}
}

// pop returns the next tag with non-zero length.
func (t *Tracker) pop(src *cbuffer.Buffer) (cbuffer.Tag, bool) {
	if src == nil {
		return cbuffer.Tag{}, false
	}
	for {
		tag, ok := src.PopTag()
		if !ok {
			return tag, false
		}
		if tag.Length > 0 {
			return tag, true
		}
		if tag.EOF {
			t.eof = true
		}
	}
}

// Classify compares the head of src against the prediction. Gaps larger
// than limit are reported as restart.
func (t *Tracker) Classify(src *cbuffer.Buffer, sampleRate int, limit time.Duration) Classification {
	if src == nil || !src.Metadata() {
		return Classification{Kind: Unknown}
	}
	if t.beforeNext > 0 {
		if !t.valid {
			return Classification{Kind: Unknown}
		}
		return Classification{Kind: Gap}
	}
	tag, ok := src.PeekTag()
	if !ok {
		return Classification{Kind: WaitingForTag}
	}
	if tag.Type == cbuffer.TagNone {
		return Classification{Kind: Unknown}
	}
	if !t.valid || tag.StreamStart || tag.Type != t.typ {
		return Classification{Kind: Restart}
	}
	d := tag.Timestamp.Sub(t.expected)
	if d > limit || d < -limit {
		return Classification{Kind: Restart}
	}
	return Classification{Kind: Gap, Gap: signal.SamplesOf(sampleRate, d)}
}
