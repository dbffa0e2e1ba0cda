package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

const (
	EventRequest Event = "request"
	EventChunk   Event = "chunk"
	EventFail    Event = "fail"
	EventClear   Event = "clear"
)

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle, StateLoading, StateSuccess, StateError:
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}

	switch event {
	case EventClear:
		return StateIdle, nil
	case EventRequest:
		return StateLoading, nil
	}

	switch current {
	case StateLoading, StateSuccess:
		switch event {
		case EventChunk:
			return StateSuccess, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, invalidTransition(current, event)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
