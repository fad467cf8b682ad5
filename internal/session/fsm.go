package session

import (
	"errors"
	"fmt"
)

// State is the lifecycle phase of a recording session.
type State string

// Event drives a State change.
type Event string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopping  State = "stopping"
	StateSaving    State = "saving"
	StateFailed    State = "failed"
)

const (
	EventStart    Event = "start"
	EventPause    Event = "pause"
	EventResume   Event = "resume"
	EventStop     Event = "stop"
	EventReleased Event = "released"
	EventSaved    Event = "saved"
	EventFail     Event = "fail"
)

// ErrInvalidTransition is wrapped by every rejected transition.
var ErrInvalidTransition = errors.New("invalid transition")

// Active reports whether s holds the capture device or its buffer.
func (s State) Active() bool {
	switch s {
	case StateRecording, StatePaused, StateStopping, StateSaving:
		return true
	case StateIdle, StateFailed:
		return false
	default:
		return false
	}
}

// Transition returns the state reached from current on event. Rejected
// transitions return current unchanged together with an error.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle, StateFailed:
		if event == EventStart {
			return StateRecording, nil
		}
	case StateRecording:
		switch event {
		case EventPause:
			return StatePaused, nil
		case EventStop:
			return StateStopping, nil
		case EventFail:
			return StateFailed, nil
		}
	case StatePaused:
		switch event {
		case EventResume:
			return StateRecording, nil
		case EventStop:
			return StateStopping, nil
		case EventFail:
			return StateFailed, nil
		}
	case StateStopping:
		switch event {
		case EventReleased:
			return StateSaving, nil
		case EventFail:
			return StateFailed, nil
		}
	case StateSaving:
		switch event {
		case EventSaved:
			return StateIdle, nil
		case EventFail:
			return StateFailed, nil
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}

	return current, fmt.Errorf("%w: %s --(%s)--> ?", ErrInvalidTransition, current, event)
}
