package srcsync

import (
	"time"

	"github.com/rs/xid"
)

// Notification is sent when a sink group starts or stops substituting
// silence for its input.
type Notification struct {
	Operator string
	Group    int
	Stalled  bool
	State    string
	// Time of the cycle that observed the change.
	Time time.Duration
}

// Listener receives notifications. It is called on the goroutine that
// drives the operator and must not call operator methods.
type Listener func(Notification)

type listener struct {
	id string
	fn Listener
}

// Subscribe registers fn and returns subscription id. Notifications are
// delivered in subscription order.
func (o *Operator) Subscribe(fn Listener) string {
	id := xid.New().String()
	o.listeners = append(o.listeners, listener{id: id, fn: fn})
	return id
}

// Unsubscribe removes subscription id. It reports whether id was found.
func (o *Operator) Unsubscribe(id string) bool {
	for i, l := range o.listeners {
		if l.id == id {
			o.listeners = append(o.listeners[:i], o.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// flip records that sink group i changed its stalled flag.
func (o *Operator) flip(i int, stalled bool) {
	g := &o.sinkGroups[i]
	o.log.WithField("group", i).Debugf("stalled=%v in %v", stalled, g.Stall.State)
	if stalled {
		o.stallOccurred |= 1 << uint(i)
		o.metric.Stalls.Add(1)
	}
	if !o.notify {
		return
	}
	n := Notification{
		Operator: o.uid,
		Group:    i,
		Stalled:  stalled,
		State:    g.Stall.State.String(),
		Time:     o.now,
	}
	for _, l := range o.listeners {
		l.fn(n)
	}
}
