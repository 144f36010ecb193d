package wizard

import "fmt"

// State is where a forward move currently is.
type State int

const (
	Idle State = iota
	Validating
	Invalid
	Valid
	Saving
	SaveFailed
	Saved
	Navigating
)

var stateNames = [...]string{
	Idle:       "idle",
	Validating: "validating",
	Invalid:    "invalid",
	Valid:      "valid",
	Saving:     "saving",
	SaveFailed: "save_failed",
	Saved:      "saved",
	Navigating: "navigating",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions lists the moves a forward step may make.
var transitions = map[State][]State{
	Idle:       {Validating},
	Validating: {Invalid, Valid},
	Invalid:    {Validating},
	Valid:      {Saving},
	Saving:     {Saved, SaveFailed},
	SaveFailed: {Saving},
	Saved:      {Navigating},
	Navigating: {Idle},
}

// CanMove reports whether next may follow s.
func (s State) CanMove(next State) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// to moves to next. An illegal move is a programming error.
func (s State) to(next State) State {
	if !s.CanMove(next) {
		panic(fmt.Sprintf("wizard: illegal transition %s -> %s", s, next))
	}
	return next
}
