package srcsync

import (
	"fmt"

	"github.com/pipelined/srcsync/cbuffer"
	"github.com/pipelined/srcsync/internal/group"
)

// MaxTerminals is the number of terminals on each side of the operator.
const MaxTerminals = group.MaxTerminals

// Direction tells inputs from outputs.
type Direction int

const (
	// Sink terminals are operator inputs.
	Sink Direction = iota
	// Source terminals are operator outputs.
	Source
)

// TerminalID identifies one terminal.
type TerminalID struct {
	Direction
	Index int
}

// SinkTerminal returns id of input i.
func SinkTerminal(i int) TerminalID {
	return TerminalID{Direction: Sink, Index: i}
}

// SourceTerminal returns id of output i.
func SourceTerminal(i int) TerminalID {
	return TerminalID{Direction: Source, Index: i}
}

func (id TerminalID) String() string {
	if id.Direction == Sink {
		return fmt.Sprintf("sink %d", id.Index)
	}
	return fmt.Sprintf("source %d", id.Index)
}

// BufferRequirements describes the buffer a terminal expects.
type BufferRequirements struct {
	// Size in samples.
	Size             int
	SupportsMetadata bool
	// MetadataBuffer is the number of tag slots, zero without metadata.
	MetadataBuffer int
}

// NewBuffer allocates a buffer that satisfies requirements.
func (r BufferRequirements) NewBuffer() *cbuffer.Buffer {
	if r.SupportsMetadata {
		return cbuffer.New(r.Size, cbuffer.WithMetadata(r.MetadataBuffer))
	}
	return cbuffer.New(r.Size)
}

func (o *Operator) side(id TerminalID) (*group.Side, error) {
	switch id.Direction {
	case Sink:
		return o.sinks, nil
	case Source:
		return o.sources, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidTerminal, id)
}

// Connect binds buffer b to terminal id. Group connectivity and metadata
// terminals are recomputed.
func (o *Operator) Connect(id TerminalID, b *cbuffer.Buffer) error {
	if err := o.apply(adjust); err != nil {
		return err
	}
	side, err := o.side(id)
	if err != nil {
		return err
	}
	o.suspend()
	defer o.resume()
	if err := side.Connect(id.Index, b); err != nil {
		o.log.Warnf("connect %v: %v", id, err)
		return err
	}
	o.log.Debugf("%v connected", id)
	return nil
}

// Disconnect clears the binding of terminal id.
func (o *Operator) Disconnect(id TerminalID) error {
	if err := o.apply(adjust); err != nil {
		return err
	}
	side, err := o.side(id)
	if err != nil {
		return err
	}
	o.suspend()
	defer o.resume()
	if err := side.Disconnect(id.Index); err != nil {
		o.log.Warnf("disconnect %v: %v", id, err)
		return err
	}
	o.log.Debugf("%v disconnected", id)
	return nil
}

// QueryBufferRequirements returns the buffer expected at terminal id.
func (o *Operator) QueryBufferRequirements(id TerminalID) (BufferRequirements, error) {
	side, err := o.side(id)
	if err != nil {
		return BufferRequirements{}, err
	}
	term, err := side.Terminal(id.Index)
	if err != nil {
		return BufferRequirements{}, err
	}
	if term.Group < 0 {
		return BufferRequirements{}, fmt.Errorf("%w: %v belongs to no group", ErrInvalidTerminal, id)
	}
	var g *group.Group
	if id.Direction == Sink {
		g = &o.sinkGroups[term.Group].Group
	} else {
		g = &o.sourceGroups[term.Group].Group
	}
	r := BufferRequirements{
		Size:             o.config.BufferSize.samples(o.config.SampleRate),
		SupportsMetadata: g.Metadata,
	}
	if g.BufferSize > 0 {
		r.Size = g.BufferSize
	}
	if g.Metadata {
		r.MetadataBuffer = o.config.MetadataSlots
	}
	return r, nil
}
