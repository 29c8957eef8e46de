package srcsync

// state identifies one of the possible states operator can be in.
type state interface {
	transition(*Operator, event) (state, error)
}

// states
type (
	stopped   struct{}
	running   struct{}
	destroyed struct{}
)

// states variables
var (
	idle    stopped   // idle means that operator can be configured and started.
	active  running   // active means that operator processes cycles.
	retired destroyed // retired means that operator released its resources.
)

// event identifies the type of command sent to the operator.
type event int

// types of events.
const (
	start event = iota
	stop
	reset
	destroy
	// configure changes topology or timing.
	configure
	// adjust changes bindings, routes or notification settings.
	adjust
)

func (e event) String() string {
	switch e {
	case start:
		return "start"
	case stop:
		return "stop"
	case reset:
		return "reset"
	case destroy:
		return "destroy"
	case configure:
		return "configure"
	case adjust:
		return "adjust"
	}
	return "unknown"
}

func (stopped) String() string   { return "stopped" }
func (running) String() string   { return "running" }
func (destroyed) String() string { return "destroyed" }

func (s stopped) transition(o *Operator, e event) (state, error) {
	switch e {
	case start:
		if err := o.begin(); err != nil {
			return s, err
		}
		return active, nil
	case reset:
		o.clear()
		return s, nil
	case destroy:
		o.release()
		return retired, nil
	case configure, adjust:
		return s, nil
	}
	return s, ErrInvalidState
}

func (s running) transition(o *Operator, e event) (state, error) {
	switch e {
	case stop:
		o.halt()
		return idle, nil
	case adjust:
		return s, nil
	}
	return s, ErrInvalidState
}

func (s destroyed) transition(o *Operator, e event) (state, error) {
	return s, ErrInvalidState
}
