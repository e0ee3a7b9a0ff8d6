package document

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// State is the lifecycle state of the open-document slot.
type State string

const (
	StateEmpty   State = "empty"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateError   State = "error"
)

const (
	eventFetch  = "fetch"
	eventLoaded = "loaded"
	eventFail   = "fail"
	eventClear  = "clear"
)

// slot wraps the state machine of the open document:
//
//	empty|loaded|error --fetch--> loading --loaded--> loaded
//	                              loading --fail----> error
//	loading|loaded|error --clear--> empty
//
// Error is not terminal; any later fetch starts over.
type slot struct {
	fsm *fsm.FSM
}

func newSlot() *slot {
	return &slot{fsm: fsm.NewFSM(
		string(StateEmpty),
		fsm.Events{
			{Name: eventFetch, Src: []string{string(StateEmpty), string(StateLoaded), string(StateError)}, Dst: string(StateLoading)},
			{Name: eventLoaded, Src: []string{string(StateLoading), string(StateError), string(StateEmpty)}, Dst: string(StateLoaded)},
			{Name: eventFail, Src: []string{string(StateLoading)}, Dst: string(StateError)},
			{Name: eventClear, Src: []string{string(StateLoading), string(StateLoaded), string(StateError)}, Dst: string(StateEmpty)},
		},
		fsm.Callbacks{},
	)}
}

func (s *slot) state() State {
	return State(s.fsm.Current())
}

// fire applies event if the current state allows it. Firing an event that
// would not change the state is not an error.
func (s *slot) fire(event string) error {
	if !s.fsm.Can(event) {
		return nil
	}
	err := s.fsm.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}
