package srcsync

import (
	"fmt"
)

// commitRoutes swaps pending routes of source groups whose fade-out is
// complete. A source group taking over a sink group that currently feeds
// another source group commits only together with that group, so groups
// exchanging feeders switch in the same cycle.
func (o *Operator) commitRoutes() {
	ready := make([]bool, len(o.sourceGroups))
	for j := range o.sourceGroups {
		ready[j] = o.routes.Ready(o.sourceGroups[j].Terminals)
	}
	for changed := true; changed; {
		changed = false
		for j := range o.sourceGroups {
			if ready[j] && !o.feederFree(j, ready) {
				ready[j], changed = false, true
			}
		}
	}
	for j := range o.sourceGroups {
		if ready[j] && o.routes.Commit(o.sourceGroups[j].Terminals) {
			o.log.Debugf("routes of source group %d committed", j)
			o.dirty = true
		}
	}
}

// feederFree reports whether every sink group source group j switches to
// is released by its current target in this cycle.
func (o *Operator) feederFree(j int, ready []bool) bool {
	for _, t := range o.sourceGroups[j].Terminals {
		if !o.routes.Pending(t) {
			continue
		}
		r := o.routes.Effective(t)
		if !r.Valid {
			continue
		}
		g := o.sinks.Find(r.Sink)
		if g < 0 {
			continue
		}
		for k := range o.sourceGroups {
			if k != j && !ready[k] && o.feeds(g, k) {
				return false
			}
		}
	}
	return true
}

// feeds reports whether current routes of source group k read sink group g.
func (o *Operator) feeds(g, k int) bool {
	for _, t := range o.sourceGroups[k].Terminals {
		if r := o.routes.Current(t); r.Valid && o.sinks.Find(r.Sink) == g {
			return true
		}
	}
	return false
}

// derive recomputes links between groups from current routes. Groups that
// got a new partner restart their state machine.
func (o *Operator) derive() {
	targets := make([]int, len(o.sinkGroups))
	for i := range targets {
		targets[i] = -1
	}
	for j := range o.sourceGroups {
		src := &o.sourceGroups[j]
		feeder := -1
		for _, t := range src.Terminals {
			r := o.routes.Current(t)
			if !r.Valid {
				continue
			}
			g := o.sinks.Find(r.Sink)
			if g < 0 {
				continue
			}
			if feeder >= 0 && feeder != g {
				panic(fmt.Sprintf("source group %d receives sink groups %d and %d", j, feeder, g))
			}
			feeder = g
		}
		if feeder >= 0 {
			if targets[feeder] >= 0 {
				panic(fmt.Sprintf("sink group %d feeds source groups %d and %d", feeder, targets[feeder], j))
			}
			targets[feeder] = j
		}
		src.Feeder = feeder
		src.MetadataSink = -1
		if src.Metadata && feeder >= 0 && o.sinkGroups[feeder].Connected {
			src.MetadataSink = feeder
		}
		if !src.Connected {
			src.History.Reset()
		}
	}
	for i := range o.sinkGroups {
		g := &o.sinkGroups[i]
		if g.Route != targets[i] {
			o.log.Debugf("sink group %d routed to %d", i, targets[i])
			g.Route = targets[i]
			o.restart(i)
		}
		if !g.Connected {
			o.restart(i)
		}
	}
	o.dirty = false
}

// restart forgets the timeline of sink group i.
func (o *Operator) restart(i int) {
	g := &o.sinkGroups[i]
	if g.Stalled() {
		o.flip(i, false)
	}
	g.Stall.Reset()
	g.Timestamp.Reset()
	if g.RateMatch != nil {
		g.RateMatch.Reset()
	}
}
