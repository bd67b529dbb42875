package scan

import (
	"fmt"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifiprovd/att"
)

// State is the value of the status characteristic.
type State uint8

const (
	Idle State = iota
	Scanning
	Finished
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Finished:
		return "finished"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

type Action uint8

const (
	ActionScan Action = iota + 1
	ActionDiscard
)

func (a Action) String() string {
	switch a {
	case ActionScan:
		return "scan"
	case ActionDiscard:
		return "discard"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// Transition returns the action a client writing requested in state from
// triggers. A scan can only be started from Idle, so results have to be
// discarded before the next scan.
func Transition(from State, requested State) (Action, error) {
	switch requested {
	case Idle:
		return ActionDiscard, nil
	case Scanning:
		if from != Idle {
			return 0, errors.Errorf("cannot scan while %v: %w", from, att.ErrInvalidTransition)
		}

		return ActionScan, nil
	default:
		return 0, errors.Errorf("%v cannot be requested: %w", requested, att.ErrInvalidValue)
	}
}
