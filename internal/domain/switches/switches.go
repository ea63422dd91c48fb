// Package switches reports athletes who changed boats between consecutive
// pieces of a session.
package switches

import (
	"slices"

	"github.com/okian/oarbit/internal/domain/model"
)

// Switch is one athlete moving boats between two pieces.
type Switch struct {
	FromPiece int    `json:"fromPiece"`
	ToPiece   int    `json:"toPiece"`
	AthleteID string `json:"athleteId"`
	FromBoat  string `json:"fromBoat"`
	ToBoat    string `json:"toBoat"`
}

// Transition groups the switches between one pair of adjacent pieces.
type Transition struct {
	FromPiece int      `json:"fromPiece"`
	ToPiece   int      `json:"toPiece"`
	Switches  []Switch `json:"switches"`
}

// Detect compares each piece with the one before it in sequence order and
// returns the transitions that contain at least one switch. Athletes absent
// from the previous piece are not switches.
func Detect(pieces []model.Piece) []Transition {
	ordered := slices.Clone(pieces)
	slices.SortStableFunc(ordered, func(a, b model.Piece) int { return a.SequenceOrder - b.SequenceOrder })

	var out []Transition
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]

		boatOf := make(map[string]string)
		for _, b := range prev.Boats {
			for _, a := range b.Assignments {
				boatOf[a.AthleteID] = b.Name
			}
		}

		t := Transition{FromPiece: prev.SequenceOrder, ToPiece: cur.SequenceOrder}
		for _, b := range cur.Boats {
			for _, a := range b.Assignments {
				from, ok := boatOf[a.AthleteID]
				if !ok || from == b.Name {
					continue
				}
				t.Switches = append(t.Switches, Switch{
					FromPiece: prev.SequenceOrder,
					ToPiece:   cur.SequenceOrder,
					AthleteID: a.AthleteID,
					FromBoat:  from,
					ToBoat:    b.Name,
				})
			}
		}
		if len(t.Switches) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Flatten lists the switches of transitions in order.
func Flatten(transitions []Transition) []Switch {
	var out []Switch
	for _, t := range transitions {
		out = append(out, t.Switches...)
	}
	return out
}
