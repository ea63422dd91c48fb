// Package model contains domain models passed between layers.
//
// Records are values: editing helpers return modified copies and never
// mutate the receiver, so a validation pass can always re-derive state from
// the current tree.
package model

import (
	"slices"
	"time"
)

// Side is the rigging side of a seat, or an athlete's preference.
type Side string

// Known sides. SideNone marks an athlete without a stated preference.
const (
	SideNone      Side = ""
	SidePort      Side = "Port"
	SideStarboard Side = "Starboard"
	SideBoth      Side = "Both"
	SideCox       Side = "Cox"
)

// Athlete is the roster view the engine needs. Roster management owns it.
type Athlete struct {
	ID        string `json:"id" yaml:"id"`
	FirstName string `json:"firstName" yaml:"first_name"`
	LastName  string `json:"lastName" yaml:"last_name"`
	Side      Side   `json:"side,omitempty" yaml:"side"`
	CanCox    bool   `json:"canCox" yaml:"can_cox"`
}

// DisplayName joins first and last name, falling back to the id.
func (a Athlete) DisplayName() string {
	switch {
	case a.FirstName != "" && a.LastName != "":
		return a.FirstName + " " + a.LastName
	case a.LastName != "":
		return a.LastName
	case a.FirstName != "":
		return a.FirstName
	}
	return a.ID
}

// Assignment places one athlete in one seat of a boat.
type Assignment struct {
	AthleteID  string `json:"athleteId"`
	SeatNumber int    `json:"seatNumber"`
	Side       Side   `json:"side"`
}

// Boat is one crew competing within a piece.
type Boat struct {
	ID                string       `json:"id,omitempty"`
	Name              string       `json:"name"`
	FinishTimeSeconds *float64     `json:"finishTimeSeconds,omitempty"`
	HandicapSeconds   float64      `json:"handicapSeconds"`
	Assignments       []Assignment `json:"assignments,omitempty"`
}

// HasFinishTime reports whether a finish time was recorded.
func (b Boat) HasFinishTime() bool { return b.FinishTimeSeconds != nil }

// EffectiveTime is the finish time adjusted by the handicap. The second
// result is false when no finish time was recorded.
func (b Boat) EffectiveTime() (float64, bool) {
	if b.FinishTimeSeconds == nil {
		return 0, false
	}
	return *b.FinishTimeSeconds + b.HandicapSeconds, true
}

// WithFinishTime returns a copy with the finish time set.
func (b Boat) WithFinishTime(seconds float64) Boat {
	out := b.clone()
	out.FinishTimeSeconds = &seconds
	return out
}

// WithAssignment returns a copy where a's seat holds a. Any other seat held
// by the same athlete in this boat is vacated.
func (b Boat) WithAssignment(a Assignment) Boat {
	out := b.clone()
	out.Assignments = out.Assignments[:0]
	for _, cur := range b.Assignments {
		if cur.SeatNumber == a.SeatNumber || cur.AthleteID == a.AthleteID {
			continue
		}
		out.Assignments = append(out.Assignments, cur)
	}
	out.Assignments = append(out.Assignments, a)
	slices.SortStableFunc(out.Assignments, func(x, y Assignment) int { return x.SeatNumber - y.SeatNumber })
	return out
}

// WithoutSeat returns a copy with the given seat emptied.
func (b Boat) WithoutSeat(seat int) Boat {
	out := b.clone()
	out.Assignments = slices.DeleteFunc(out.Assignments, func(a Assignment) bool { return a.SeatNumber == seat })
	return out
}

// Seat returns the assignment for a seat number.
func (b Boat) Seat(seat int) (Assignment, bool) {
	for _, a := range b.Assignments {
		if a.SeatNumber == seat {
			return a, true
		}
	}
	return Assignment{}, false
}

func (b Boat) clone() Boat {
	out := b
	out.Assignments = slices.Clone(b.Assignments)
	if b.FinishTimeSeconds != nil {
		v := *b.FinishTimeSeconds
		out.FinishTimeSeconds = &v
	}
	return out
}

// Piece is one timed race repetition within a session.
type Piece struct {
	ID             string `json:"id,omitempty"`
	SequenceOrder  int    `json:"sequenceOrder"`
	DistanceMeters *int   `json:"distanceMeters,omitempty"`
	Direction      string `json:"direction,omitempty"`
	Notes          string `json:"notes,omitempty"`
	Boats          []Boat `json:"boats"`
}

// BoatIndex returns the position of the boat with the given id or name.
func (p Piece) BoatIndex(key string) int {
	for i, b := range p.Boats {
		if (b.ID != "" && b.ID == key) || b.Name == key {
			return i
		}
	}
	return -1
}

// WithBoat returns a copy with the boat at index i replaced.
func (p Piece) WithBoat(i int, b Boat) Piece {
	out := p
	out.Boats = make([]Boat, len(p.Boats))
	for j := range p.Boats {
		out.Boats[j] = p.Boats[j].clone()
	}
	out.Boats[i] = b.clone()
	return out
}

// Session is one seat-racing training session.
type Session struct {
	ID          string    `json:"id,omitempty"`
	Date        time.Time `json:"date"`
	BoatClass   string    `json:"boatClass"`
	Conditions  string    `json:"conditions,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Pieces      []Piece   `json:"pieces"`
}

// OrderedPieces returns the pieces sorted by sequence order. Pieces sharing
// an order keep their relative position.
func (s Session) OrderedPieces() []Piece {
	out := slices.Clone(s.Pieces)
	slices.SortStableFunc(out, func(a, b Piece) int { return a.SequenceOrder - b.SequenceOrder })
	return out
}

// AthleteIDs lists every athlete assigned anywhere in the session, in order
// of first appearance.
func (s Session) AthleteIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, p := range s.OrderedPieces() {
		for _, b := range p.Boats {
			for _, a := range b.Assignments {
				if _, ok := seen[a.AthleteID]; ok {
					continue
				}
				seen[a.AthleteID] = struct{}{}
				ids = append(ids, a.AthleteID)
			}
		}
	}
	return ids
}
