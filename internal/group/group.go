// Package group models terminals and the multi-channel groups they form.
//
// Each side of the operator (sinks and sources) is a Side: a fixed array
// of terminals plus an arena of groups. Terminals refer to their group by
// index and groups list their member terminals in ascending order, so no
// pointers cross between the two.
package group

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/pipelined/srcsync/cbuffer"
)

// MaxTerminals is the number of terminals on each side.
const MaxTerminals = 24

var (
	// ErrInvalidTerminal is returned for out of range terminal indices or
	// terminals which belong to no group.
	ErrInvalidTerminal = errors.New("invalid terminal")
	// ErrAlreadyConnected is returned when connecting a bound terminal.
	ErrAlreadyConnected = errors.New("terminal already connected")
	// ErrNotConnected is returned when disconnecting an unbound terminal.
	ErrNotConnected = errors.New("terminal not connected")
	// ErrInvalidMask is returned for empty, out of range or overlapping
	// channel masks.
	ErrInvalidMask = errors.New("invalid channel mask")
	// ErrUncovered is returned when a connected terminal would be left
	// without a group.
	ErrUncovered = errors.New("connected terminal not covered by any group")
	// ErrTooManyGroups is returned when more groups than terminals are
	// requested.
	ErrTooManyGroups = errors.New("too many groups")
)

// Mask is a set of channel numbers.
type Mask uint32

// MaskOf returns mask with provided channels set.
func MaskOf(channels ...int) Mask {
	var m Mask
	for _, c := range channels {
		m |= 1 << uint(c)
	}
	return m
}

// Has reports whether channel c is in the mask.
func (m Mask) Has(c int) bool {
	return c >= 0 && c < 32 && m&(1<<uint(c)) != 0
}

// Count returns number of channels in the mask.
func (m Mask) Count() int {
	return bits.OnesCount32(uint32(m))
}

// Channels returns channel numbers in ascending order.
func (m Mask) Channels() []int {
	channels := make([]int, 0, m.Count())
	for c := 0; c < 32; c++ {
		if m.Has(c) {
			channels = append(channels, c)
		}
	}
	return channels
}

// Terminal is one connection point of the operator.
type Terminal struct {
	Index  int
	Group  int
	Buffer *cbuffer.Buffer
}

// Connected reports whether a buffer is bound.
func (t *Terminal) Connected() bool {
	return t.Buffer != nil
}

// Group is the part shared by sink and source groups.
type Group struct {
	Channels  Mask
	Terminals []int
	// Connected is true iff every terminal in Channels has a buffer.
	Connected bool
	Metadata  bool
	// BufferSize overrides the default buffer size in words when non-zero.
	BufferSize int
	// MetadataTerminal supplies or receives tags, -1 if none.
	MetadataTerminal int
}

func (g *Group) String() string {
	return fmt.Sprintf("group%v", g.Terminals)
}
