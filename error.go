package srcsync

import (
	"errors"
	"strings"

	"github.com/pipelined/srcsync/internal/group"
)

var (
	// ErrInvalidState is returned if operator method cannot be executed at
	// this moment.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidRoute is returned for routes that reference unknown
	// channels or mix sink groups within one source group.
	ErrInvalidRoute = errors.New("invalid route")
	// ErrInvalidConfig is returned for inconsistent configuration.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidTerminal is returned for unknown terminals.
	ErrInvalidTerminal = group.ErrInvalidTerminal
	// ErrAlreadyConnected is returned when connecting a bound terminal.
	ErrAlreadyConnected = group.ErrAlreadyConnected
	// ErrNotConnected is returned when disconnecting an unbound terminal.
	ErrNotConnected = group.ErrNotConnected
	// ErrInvalidGroup is returned for malformed group specs.
	ErrInvalidGroup = group.ErrInvalidMask
	// ErrUncovered is returned when a group spec leaves a connected
	// terminal without a group.
	ErrUncovered = group.ErrUncovered
	// ErrTooManyGroups is returned when a group spec needs more groups
	// than the operator has terminals.
	ErrTooManyGroups = group.ErrTooManyGroups
)

// errorList wraps errors that occur when several listeners or terminals
// fail within one call.
type errorList []error

func (e errorList) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

// Is checks if any of errors match provided sentinel error.
func (e errorList) Is(err error) bool {
	for _, se := range e {
		if errors.Is(se, err) {
			return true
		}
	}
	return false
}

// ret returns untyped nil if error list is empty.
func (e errorList) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
