package group

import (
	"github.com/pipelined/srcsync/internal/history"
	"github.com/pipelined/srcsync/internal/stall"
	"github.com/pipelined/srcsync/internal/timestamp"
)

// BackKick selects when consumed sink terminals are reported to the host.
type BackKick int

const (
	// BackKickLevel reports while free space is at or above the threshold.
	BackKickLevel BackKick = iota
	// BackKickEdge reports when free space crosses the threshold.
	BackKickEdge
	// BackKickDisabled never reports.
	BackKickDisabled
)

// Sink is a group of input terminals.
type Sink struct {
	Group
	// Synchronous groups never stall.
	Synchronous bool
	// Purge drains the group while it is not routed.
	Purge bool

	BackKick          BackKick
	BackKickThreshold int
	// backKickAbove remembers the last level comparison for edge mode.
	backKickAbove bool

	// Route is the source group fed by this group, -1 none.
	Route     int
	Stall     stall.Machine
	Timestamp timestamp.Tracker
	RateMatch *history.RateMatcher
}

// Source is a group of output terminals.
type Source struct {
	Group
	// ProvideTimestamp stamps untimed output with arrival time.
	ProvideTimestamp bool
	// Feeder is the sink group routed to this group, -1 none.
	Feeder int
	// MetadataSink is the sink group whose tags reach this group, -1 none.
	MetadataSink int
	// History records output occupancy.
	History *history.History
}

// AllocateSinks returns n unlinked sink groups.
func AllocateSinks(n int) []Sink {
	groups := make([]Sink, n)
	for i := range groups {
		groups[i].Route = -1
		groups[i].MetadataTerminal = -1
	}
	return groups
}

// AllocateSources returns n unlinked source groups.
func AllocateSources(n int) []Source {
	groups := make([]Source, n)
	for i := range groups {
		groups[i].Feeder = -1
		groups[i].MetadataSink = -1
		groups[i].MetadataTerminal = -1
		groups[i].History = history.New(history.Capacity)
	}
	return groups
}

// SinkBases returns pointers to the shared part of sink groups.
func SinkBases(groups []Sink) []*Group {
	bases := make([]*Group, len(groups))
	for i := range groups {
		bases[i] = &groups[i].Group
	}
	return bases
}

// SourceBases returns pointers to the shared part of source groups.
func SourceBases(groups []Source) []*Group {
	bases := make([]*Group, len(groups))
	for i := range groups {
		bases[i] = &groups[i].Group
	}
	return bases
}

// Kick reports whether a consumed terminal with provided free space should
// be reported to the host, updating edge state.
func (s *Sink) Kick(space int) bool {
	above := space >= s.BackKickThreshold
	defer func() { s.backKickAbove = above }()
	switch s.BackKick {
	case BackKickLevel:
		return above
	case BackKickEdge:
		return above && !s.backKickAbove
	}
	return false
}

// Stalled reports whether the group currently substitutes silence.
func (s *Sink) Stalled() bool {
	return s.Stall.State.Silencing()
}
