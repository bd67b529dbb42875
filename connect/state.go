package connect

import (
	"fmt"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifiprovd/att"
)

// State is the value of the state characteristic.
type State uint8

const (
	Idle State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Action is what a client initiated transition asks the network to do.
type Action uint8

const (
	ActionConnect Action = iota + 1
	ActionDisconnect
)

func (a Action) String() string {
	switch a {
	case ActionConnect:
		return "connect"
	case ActionDisconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// Transition returns the action a client writing requested in state from
// triggers. Clients may only ask for Idle or Connecting, the other states
// are reached through the outcome of an action.
func Transition(from State, requested State) (Action, error) {
	switch requested {
	case Idle:
		return ActionDisconnect, nil
	case Connecting:
		switch from {
		case Idle, Connected:
			return ActionConnect, nil
		default:
			return 0, errors.Errorf("cannot connect while %v: %w", from, att.ErrInvalidTransition)
		}
	default:
		return 0, errors.Errorf("%v cannot be requested: %w", requested, att.ErrInvalidValue)
	}
}
