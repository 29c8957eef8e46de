// Package host drives an operator from a single goroutine. Kicks from
// producers, consumers and the operator timer are coalesced, and each
// produces one Process call. Commands run on the same goroutine.
package host

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/pipelined/srcsync"
	"github.com/pipelined/srcsync/log"
)

// ErrClosed is returned when host is used after Close.
var ErrClosed = errors.New("host is closed")

// Host owns the goroutine of one operator.
type Host struct {
	log logrus.FieldLogger
	op  *srcsync.Operator
	// kickc is buffered, pending kicks are merged.
	kickc chan struct{}
	// commandc is unbuffered, caller waits for feedback.
	commandc chan command
	// donec is closed when loop is done.
	donec   chan struct{}
	timer   *timer
	touched func(srcsync.Touched)
}

// command is a closure executed on the loop goroutine. Feedback channel
// receives its result.
type command struct {
	fn       func(*srcsync.Operator) error
	feedback chan error
	// last command terminates the loop.
	last bool
}

// New creates an operator with provided options and starts the loop. The
// operator timer is replaced with the one of the host.
func New(options ...srcsync.Option) (*Host, error) {
	h := Host{
		log:      log.GetLogger(),
		kickc:    make(chan struct{}, 1),
		commandc: make(chan command),
		donec:    make(chan struct{}),
	}
	h.timer = &timer{kick: h.Kick}
	op, err := srcsync.New(append(options, srcsync.WithTimer(h.timer))...)
	if err != nil {
		return nil, err
	}
	h.op = op
	h.log = h.log.WithField("operator", op.ID())
	go h.loop()
	return &h, nil
}

// Kick requests a cycle. It never blocks and can be called from any
// goroutine.
func (h *Host) Kick() {
	select {
	case h.kickc <- struct{}{}:
	default:
	}
}

// Do executes fn on the loop goroutine and returns its error.
func (h *Host) Do(fn func(*srcsync.Operator) error) error {
	return h.send(command{fn: fn, feedback: make(chan error, 1)})
}

// OnTouched sets the function that receives touched terminals of every
// cycle that touched any. It is called on the loop goroutine.
func (h *Host) OnTouched(fn func(srcsync.Touched)) error {
	return h.Do(func(*srcsync.Operator) error {
		h.touched = fn
		return nil
	})
}

// Close stops and destroys the operator and waits for the loop to
// finish.
func (h *Host) Close() error {
	err := h.send(command{fn: h.shutdown, feedback: make(chan error, 1), last: true})
	<-h.donec
	return err
}

func (h *Host) send(c command) error {
	select {
	case h.commandc <- c:
	case <-h.donec:
		return ErrClosed
	}
	return <-c.feedback
}

func (h *Host) loop() {
	defer close(h.donec)
	for {
		select {
		case c := <-h.commandc:
			c.feedback <- c.fn(h.op)
			if c.last {
				h.log.Debug("host closed")
				return
			}
		case <-h.kickc:
			touched := h.op.Process()
			if h.touched != nil && touched != (srcsync.Touched{}) {
				h.touched(touched)
			}
		}
	}
}

// shutdown stops a running operator and destroys it. Destroy is not
// attempted when Stop fails because it would be rejected as well.
func (h *Host) shutdown(o *srcsync.Operator) error {
	defer h.timer.Cancel()
	if o.Running() {
		if err := o.Stop(); err != nil {
			return err
		}
	}
	return o.Destroy()
}
