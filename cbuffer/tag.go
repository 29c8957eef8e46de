package cbuffer

import "github.com/pipelined/srcsync/signal"

// TagType identifies which clock a tag timestamp refers to.
type TagType uint8

const (
	// TagNone carries no timing information.
	TagNone TagType = iota
	// TagArrival carries the time the first sample arrived.
	TagArrival
	// TagPlayTime carries the time the first sample must be played.
	TagPlayTime
)

func (t TagType) String() string {
	switch t {
	case TagNone:
		return "none"
	case TagArrival:
		return "arrival"
	case TagPlayTime:
		return "play-time"
	}
	return "unknown"
}

// Tag describes a contiguous span of samples. Tags in a queue cover
// consecutive spans in the order the samples were written.
type Tag struct {
	Length      int
	Type        TagType
	Timestamp   signal.Time
	StreamStart bool
	EOF         bool
	// Void marks silence inserted by the engine.
	Void bool
}

// TagSpace returns number of tags that can be appended.
func (b *Buffer) TagSpace() int {
	return len(b.tags) - b.tagCount
}

// AppendTag appends t to the tag queue.
func (b *Buffer) AppendTag(t Tag) error {
	if b.TagSpace() == 0 {
		return ErrTagsFull
	}
	b.tags[(b.tagHead+b.tagCount)%len(b.tags)] = t
	b.tagCount++
	return nil
}

// PeekTag returns the oldest tag without removing it.
func (b *Buffer) PeekTag() (Tag, bool) {
	if b.tagCount == 0 {
		return Tag{}, false
	}
	return b.tags[b.tagHead], true
}

// PeekTagAt returns the i-th queued tag, oldest first, without removing
// it.
func (b *Buffer) PeekTagAt(i int) (Tag, bool) {
	if i < 0 || i >= b.tagCount {
		return Tag{}, false
	}
	return b.tags[(b.tagHead+i)%len(b.tags)], true
}

// PopTag removes and returns the oldest tag.
func (b *Buffer) PopTag() (Tag, bool) {
	t, ok := b.PeekTag()
	if ok {
		b.tagHead = (b.tagHead + 1) % len(b.tags)
		b.tagCount--
	}
	return t, ok
}

// Tags returns a copy of queued tags, oldest first.
func (b *Buffer) Tags() []Tag {
	tags := make([]Tag, 0, b.tagCount)
	for i := 0; i < b.tagCount; i++ {
		tags = append(tags, b.tags[(b.tagHead+i)%len(b.tags)])
	}
	return tags
}
