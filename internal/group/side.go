package group

import (
	"fmt"

	"github.com/pipelined/srcsync/cbuffer"
)

// Side holds the terminals of one direction and the groups bound to them.
type Side struct {
	Terminals []Terminal
	groups    []*Group
}

// NewSide creates n terminals which belong to no group.
func NewSide(n int) *Side {
	s := Side{Terminals: make([]Terminal, n)}
	for i := range s.Terminals {
		s.Terminals[i] = Terminal{Index: i, Group: -1}
	}
	return &s
}

// Validate checks that masks fit the side without binding them.
func (s *Side) Validate(masks []Mask) error {
	if len(masks) > len(s.Terminals) {
		return fmt.Errorf("%w: %d groups for %d terminals", ErrTooManyGroups, len(masks), len(s.Terminals))
	}
	var used Mask
	for i, m := range masks {
		if m == 0 {
			return fmt.Errorf("%w: group %d is empty", ErrInvalidMask, i)
		}
		if m>>uint(len(s.Terminals)) != 0 {
			return fmt.Errorf("%w: group %d exceeds %d terminals", ErrInvalidMask, i, len(s.Terminals))
		}
		if used&m != 0 {
			return fmt.Errorf("%w: group %d overlaps", ErrInvalidMask, i)
		}
		used |= m
	}
	for i := range s.Terminals {
		if s.Terminals[i].Connected() && !used.Has(i) {
			return fmt.Errorf("%w: terminal %d", ErrUncovered, i)
		}
	}
	return nil
}

// Bind attaches groups to the side. Existing buffer bindings are kept and
// connectivity of every group is recomputed.
func (s *Side) Bind(groups []*Group) error {
	masks := make([]Mask, len(groups))
	for i, g := range groups {
		masks[i] = g.Channels
	}
	if err := s.Validate(masks); err != nil {
		return err
	}
	for i := range s.Terminals {
		s.Terminals[i].Group = -1
	}
	for i, g := range groups {
		g.Terminals = g.Channels.Channels()
		for _, t := range g.Terminals {
			s.Terminals[t].Group = i
		}
	}
	s.groups = groups
	for i := range groups {
		s.refresh(i)
	}
	return nil
}

// Find returns the group containing channel c or -1.
func (s *Side) Find(c int) int {
	if c < 0 || c >= len(s.Terminals) {
		return -1
	}
	return s.Terminals[c].Group
}

// Terminal returns terminal t or an error if it is out of range.
func (s *Side) Terminal(t int) (*Terminal, error) {
	if t < 0 || t >= len(s.Terminals) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTerminal, t)
	}
	return &s.Terminals[t], nil
}

// Buffer returns the buffer bound to terminal t.
func (s *Side) Buffer(t int) *cbuffer.Buffer {
	if t < 0 || t >= len(s.Terminals) {
		return nil
	}
	return s.Terminals[t].Buffer
}

// Connect binds buffer b to terminal t.
func (s *Side) Connect(t int, b *cbuffer.Buffer) error {
	term, err := s.Terminal(t)
	if err != nil {
		return err
	}
	if term.Group < 0 {
		return fmt.Errorf("%w: terminal %d belongs to no group", ErrInvalidTerminal, t)
	}
	if b == nil {
		return fmt.Errorf("%w: nil buffer for terminal %d", ErrInvalidTerminal, t)
	}
	if term.Connected() {
		return fmt.Errorf("%w: terminal %d", ErrAlreadyConnected, t)
	}
	term.Buffer = b
	s.refresh(term.Group)
	return nil
}

// Disconnect clears the binding of terminal t.
func (s *Side) Disconnect(t int) error {
	term, err := s.Terminal(t)
	if err != nil {
		return err
	}
	if !term.Connected() {
		return fmt.Errorf("%w: terminal %d", ErrNotConnected, t)
	}
	term.Buffer = nil
	if term.Group >= 0 {
		s.refresh(term.Group)
	}
	return nil
}

// Data returns minimum data across the terminals of group g.
func (s *Side) Data(g *Group) int {
	data := -1
	for _, t := range g.Terminals {
		if b := s.Terminals[t].Buffer; b != nil && (data < 0 || b.Data() < data) {
			data = b.Data()
		}
	}
	return max(data, 0)
}

// Space returns minimum space across the terminals of group g. The space
// is zero when the group carries metadata and its metadata terminal has no
// free tag slot.
func (s *Side) Space(g *Group) int {
	space := -1
	for _, t := range g.Terminals {
		if b := s.Terminals[t].Buffer; b != nil && (space < 0 || b.Space() < space) {
			space = b.Space()
		}
	}
	if g.Metadata && g.MetadataTerminal >= 0 && s.Terminals[g.MetadataTerminal].Buffer.TagSpace() == 0 {
		return 0
	}
	return max(space, 0)
}

// Occupancy returns maximum data across the terminals of group g.
func (s *Side) Occupancy(g *Group) int {
	var occupancy int
	for _, t := range g.Terminals {
		if b := s.Terminals[t].Buffer; b != nil {
			occupancy = max(occupancy, b.Data())
		}
	}
	return occupancy
}

// Capacity returns the smallest buffer size of group g.
func (s *Side) Capacity(g *Group) int {
	capacity := -1
	for _, t := range g.Terminals {
		if b := s.Terminals[t].Buffer; b != nil && (capacity < 0 || b.Size() < capacity) {
			capacity = b.Size()
		}
	}
	return max(capacity, 0)
}

// refresh recomputes connectivity and the metadata terminal of group i.
func (s *Side) refresh(i int) {
	g := s.groups[i]
	g.Connected = len(g.Terminals) > 0
	for _, t := range g.Terminals {
		if !s.Terminals[t].Connected() {
			g.Connected = false
		}
	}
	if g.Metadata && g.MetadataTerminal >= 0 && s.metadataCapable(g.MetadataTerminal) && s.Terminals[g.MetadataTerminal].Group == i {
		return
	}
	// previous metadata terminal is gone, pick the first capable member.
	g.MetadataTerminal = -1
	if !g.Metadata {
		return
	}
	for _, t := range g.Terminals {
		if s.metadataCapable(t) {
			g.MetadataTerminal = t
			return
		}
	}
}

func (s *Side) metadataCapable(t int) bool {
	b := s.Terminals[t].Buffer
	return b != nil && b.Metadata()
}
