// Package waveform holds the catalog of remote-control actions and the two
// raw pulse sequences recorded for each of them.
package waveform

import (
	"errors"
	"fmt"
)

// Action identifies a logical remote-control command.
type Action uint8

const (
	Power Action = iota + 1
	Mode
	Up
	Down
	Left
	Right
	Select
	VolumeDown
	VolumeUp
	Record
	PauseMute
	Bookmark
	Favorite
	Digit1
	Digit2
	Digit3
	Digit4
	Digit5
	Digit6
	Digit7
	Digit8
	Digit9
	Jump
	Digit0
	Display
)

var ErrUnknownAction = errors.New("unknown action")

// Names as they appear on the remote, in layout order.
var actionNames = [...]string{
	Power:      "Power",
	Mode:       "Mode",
	Up:         "Up",
	Down:       "Down",
	Left:       "Left",
	Right:      "Right",
	Select:     "Select",
	VolumeDown: "Volume -",
	VolumeUp:   "Volume +",
	Record:     "Record",
	PauseMute:  "Pause/Mute",
	Bookmark:   "Bookmark",
	Favorite:   "Favorite",
	Digit1:     "1",
	Digit2:     "2",
	Digit3:     "3",
	Digit4:     "4",
	Digit5:     "5",
	Digit6:     "6",
	Digit7:     "7",
	Digit8:     "8",
	Digit9:     "9",
	Jump:       "Jump",
	Digit0:     "0",
	Display:    "Display",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for _, a := range AllActions() {
		m[actionNames[a]] = a
	}
	return m
}()

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
	return actionNames[a]
}

// Valid reports whether a is one of the catalog actions.
func (a Action) Valid() bool {
	return a >= Power && a <= Display
}

// ParseAction resolves a remote button label such as "Volume +" into an Action.
func ParseAction(name string) (Action, error) {
	a, ok := actionsByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return a, nil
}

// AllActions returns every catalog action in layout order.
func AllActions() []Action {
	out := make([]Action, 0, len(actionNames)-1)
	for a := Power; a <= Display; a++ {
		out = append(out, a)
	}
	return out
}
