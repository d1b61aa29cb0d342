// Package emotion maps a point on the valence/energy plane onto one of nine
// emotion labels and defines how a listener may want to move between them.
package emotion

import (
	"fmt"
	"strings"
)

type Label string

const (
	Depressed Label = "DEPRESSED"
	Sleepy    Label = "SLEEPY"
	Tense     Label = "TENSE"
	Sad       Label = "SAD"
	Neutral   Label = "NEUTRAL"
	Fear      Label = "FEAR"
	Calm      Label = "CALM"
	Joy       Label = "JOY"
	Excited   Label = "EXCITED"
)

// Band boundaries. A value equal to a boundary belongs to the upper band.
const (
	ValenceLow  = 0.281
	ValenceHigh = 0.586
	EnergyLow   = 0.415
	EnergyHigh  = 0.722
)

// grid[valenceBand][energyBand]
var grid = [3][3]Label{
	{Depressed, Sleepy, Tense},
	{Sad, Neutral, Fear},
	{Calm, Joy, Excited},
}

// All returns every label in grid order (valence band major, energy minor).
func All() []Label {
	out := make([]Label, 0, 9)
	for _, row := range grid {
		out = append(out, row[:]...)
	}
	return out
}

func (l Label) String() string { return string(l) }

func (l Label) Valid() bool {
	for _, row := range grid {
		for _, v := range row {
			if v == l {
				return true
			}
		}
	}
	return false
}

// Parse accepts a label name in any case.
func Parse(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unknown emotion %q", s)
	}
	return l, nil
}

// Classify clamps both coordinates to [0,1] and returns the label of the
// grid cell containing them. Total over all float inputs; NaN lands in the
// lowest band.
func Classify(valence, energy float64) Label {
	return grid[band(clamp01(valence), ValenceLow, ValenceHigh)][band(clamp01(energy), EnergyLow, EnergyHigh)]
}

func band(v, low, high float64) int {
	switch {
	case v < low:
		return 0
	case v < high:
		return 1
	default:
		return 2
	}
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// bounds returns the valence and energy intervals covered by a label's cell.
func bounds(l Label) (valence [2]float64, energy [2]float64, ok bool) {
	vEdges := [4]float64{0, ValenceLow, ValenceHigh, 1}
	eEdges := [4]float64{0, EnergyLow, EnergyHigh, 1}
	for vi, row := range grid {
		for ei, v := range row {
			if v == l {
				return [2]float64{vEdges[vi], vEdges[vi+1]}, [2]float64{eEdges[ei], eEdges[ei+1]}, true
			}
		}
	}
	return valence, energy, false
}
