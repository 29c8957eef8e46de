package srcsync

import (
	"fmt"

	"github.com/pipelined/srcsync/internal/route"
)

// RouteSpec forwards sink channel Sink to source channel Source.
type RouteSpec struct {
	Source int
	// Sink is the input channel, negative value silences the output.
	Sink int
	// Gain is linear, zero selects unity gain.
	Gain float64
	// SampleRate of the routed stream, zero if unknown.
	SampleRate int
}

// SetRoute applies route entries. All entries are validated before any of
// them takes effect. Changed routes fade out and the new routes fade in
// once every changed channel of a source group has faded out.
func (o *Operator) SetRoute(entries []RouteSpec) error {
	if err := o.apply(adjust); err != nil {
		return err
	}
	proposed := make([]route.Route, o.routes.Len())
	for i := range proposed {
		proposed[i] = o.routes.Effective(i)
	}
	sampleRate := o.config.SampleRate
	var errs errorList
	for _, e := range entries {
		if e.Source < 0 || e.Source >= len(proposed) || e.Sink >= MaxTerminals {
			errs = append(errs, fmt.Errorf("%w: %d -> %d", ErrInvalidRoute, e.Sink, e.Source))
			continue
		}
		if e.SampleRate != 0 {
			if sampleRate != 0 && sampleRate != e.SampleRate {
				errs = append(errs, fmt.Errorf("%w: route %d -> %d at %dHz, operator at %dHz", ErrInvalidConfig, e.Sink, e.Source, e.SampleRate, sampleRate))
				continue
			}
			sampleRate = e.SampleRate
		}
		if e.Sink < 0 {
			proposed[e.Source] = route.Route{}
			continue
		}
		proposed[e.Source] = route.Route{Valid: true, Sink: e.Sink, Gain: gain(e.Gain)}
	}
	if err := errs.ret(); err != nil {
		o.log.Warnf("set route: %v", err)
		return err
	}
	effective := func(i int) route.Route { return proposed[i] }
	if err := o.validateRoutes(effective, o.sinks.Find, o.sources.Find); err != nil {
		o.log.Warnf("set route: %v", err)
		return err
	}

	o.suspend()
	defer o.resume()
	if sampleRate != o.config.SampleRate {
		o.setSampleRate(sampleRate)
	}
	for _, e := range entries {
		var err error
		if e.Sink < 0 {
			err = o.routes.Clear(e.Source)
		} else {
			err = o.routes.Set(e.Source, e.Sink, gain(e.Gain))
		}
		if err != nil {
			// indices are validated above.
			panic(err)
		}
	}
	return nil
}

func gain(g float64) float64 {
	if g == 0 {
		return 1
	}
	return g
}

// validateRoutes checks that every valid route joins grouped channels,
// that all routes into one source group come from one sink group and that
// a sink group feeds at most one source group.
func (o *Operator) validateRoutes(effective func(int) route.Route, sinkGroup, sourceGroup func(int) int) error {
	feeders := map[int]int{}
	targets := map[int]int{}
	for c := 0; c < o.routes.Len(); c++ {
		r := effective(c)
		if !r.Valid {
			continue
		}
		src, snk := sourceGroup(c), sinkGroup(r.Sink)
		if src < 0 || snk < 0 {
			return fmt.Errorf("%w: %d -> %d joins ungrouped channel", ErrInvalidRoute, r.Sink, c)
		}
		if f, ok := feeders[src]; ok && f != snk {
			return fmt.Errorf("%w: source group %d is fed by sink groups %d and %d", ErrInvalidRoute, src, f, snk)
		}
		if t, ok := targets[snk]; ok && t != src {
			return fmt.Errorf("%w: sink group %d feeds source groups %d and %d", ErrInvalidRoute, snk, t, src)
		}
		feeders[src], targets[snk] = snk, src
	}
	return nil
}
