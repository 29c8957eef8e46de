package srcsync

import (
	"fmt"

	"github.com/pipelined/srcsync/internal/group"
	"github.com/pipelined/srcsync/internal/history"
)

// GroupSpec describes one group of terminals.
type GroupSpec struct {
	// Channels is the bit mask of member terminals.
	Channels uint32
	// Metadata enables tag transport for the group.
	Metadata bool
	// BufferSize overrides default buffer size in samples.
	BufferSize int

	// Synchronous sink groups never stall.
	Synchronous bool
	// Purge drains a sink group while it is not routed.
	Purge bool
	// RateMatch enables rate drift estimation of a sink group.
	RateMatch bool

	// ProvideTimestamp stamps untimed output of a source group with
	// arrival time.
	ProvideTimestamp bool
}

func masks(specs []GroupSpec) []group.Mask {
	m := make([]group.Mask, len(specs))
	for i, spec := range specs {
		m[i] = group.Mask(spec.Channels)
	}
	return m
}

// SetSinkGroups replaces all sink groups. Existing terminal bindings are
// kept; routes must stay consistent with the new grouping.
func (o *Operator) SetSinkGroups(specs []GroupSpec) error {
	if err := o.apply(configure); err != nil {
		return err
	}
	if err := o.sinks.Validate(masks(specs)); err != nil {
		return err
	}
	if err := o.validateRoutes(o.routes.Effective, finder(masks(specs)), o.sources.Find); err != nil {
		return err
	}
	groups := group.AllocateSinks(len(specs))
	for i, spec := range specs {
		g := &groups[i]
		g.Channels = group.Mask(spec.Channels)
		g.Metadata = spec.Metadata
		g.BufferSize = spec.BufferSize
		g.Synchronous = spec.Synchronous
		g.Purge = spec.Purge
		if spec.RateMatch {
			g.RateMatch = history.NewRateMatcher(o.config.RateMatchWindow)
		}
	}

	o.suspend()
	defer o.resume()
	if err := o.sinks.Bind(group.SinkBases(groups)); err != nil {
		// validated above.
		panic(fmt.Sprintf("bind sink groups: %v", err))
	}
	o.sinkGroups = groups
	o.log.Debugf("%d sink groups", len(groups))
	return nil
}

// SetSourceGroups replaces all source groups.
func (o *Operator) SetSourceGroups(specs []GroupSpec) error {
	if err := o.apply(configure); err != nil {
		return err
	}
	if err := o.sources.Validate(masks(specs)); err != nil {
		return err
	}
	if err := o.validateRoutes(o.routes.Effective, o.sinks.Find, finder(masks(specs))); err != nil {
		return err
	}
	groups := group.AllocateSources(len(specs))
	for i, spec := range specs {
		g := &groups[i]
		g.Channels = group.Mask(spec.Channels)
		g.Metadata = spec.Metadata
		g.BufferSize = spec.BufferSize
		g.ProvideTimestamp = spec.ProvideTimestamp
	}

	o.suspend()
	defer o.resume()
	if err := o.sources.Bind(group.SourceBases(groups)); err != nil {
		panic(fmt.Sprintf("bind source groups: %v", err))
	}
	o.sourceGroups = groups
	o.log.Debugf("%d source groups", len(groups))
	return nil
}

// finder returns channel to group lookup for masks that are not bound yet.
func finder(masks []group.Mask) func(int) int {
	return func(c int) int {
		for i, m := range masks {
			if m.Has(c) {
				return i
			}
		}
		return -1
	}
}
