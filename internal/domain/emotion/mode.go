package emotion

import (
	"fmt"
	"strings"
)

// Mode is the direction a listener wants their mood to go.
type Mode string

const (
	Maintain Mode = "MAINTAIN"
	Elevate  Mode = "ELEVATE"
	CalmDown Mode = "CALM_DOWN"
	Reverse  Mode = "REVERSE"
)

func (m Mode) Valid() bool {
	switch m {
	case Maintain, Elevate, CalmDown, Reverse:
		return true
	}
	return false
}

// ParseMode accepts a mode name in any case; empty means Maintain.
func ParseMode(s string) (Mode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Maintain, nil
	}
	m := Mode(strings.ReplaceAll(s, "-", "_"))
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

var transitions = map[Label]map[Mode]Label{
	Depressed: {Maintain: Depressed, Elevate: Sad, CalmDown: Depressed, Reverse: Excited},
	Sleepy:    {Maintain: Sleepy, Elevate: Neutral, CalmDown: Sleepy, Reverse: Tense},
	Tense:     {Maintain: Tense, Elevate: Fear, CalmDown: Sleepy, Reverse: Sleepy},
	Sad:       {Maintain: Sad, Elevate: Neutral, CalmDown: Sad, Reverse: Joy},
	Neutral:   {Maintain: Neutral, Elevate: Fear, CalmDown: Sad, Reverse: Sad},
	Fear:      {Maintain: Fear, Elevate: Excited, CalmDown: Neutral, Reverse: Calm},
	Calm:      {Maintain: Calm, Elevate: Joy, CalmDown: Calm, Reverse: Fear},
	Joy:       {Maintain: Joy, Elevate: Excited, CalmDown: Calm, Reverse: Sad},
	Excited:   {Maintain: Excited, Elevate: Excited, CalmDown: Joy, Reverse: Depressed},
}

// Transition returns the label a recommendation should target when the
// listener is at from and wants to move in mode. Unknown inputs keep from.
func Transition(from Label, mode Mode) Label {
	if next, ok := transitions[from][mode]; ok {
		return next
	}
	return from
}
