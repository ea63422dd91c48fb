// Package validate checks seat assignments against the structural rules of
// a session and reports advisory findings for the coach.
//
// Every function re-derives what it needs from the records it is given;
// nothing is cached between calls.
package validate

import (
	"fmt"
	"strings"

	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/seats"
)

// MaxBoats is the largest number of boats a piece may hold.
const MaxBoats = 4

// MinBoats is the number of boats a piece needs to produce comparisons.
const MinBoats = 2

// Roster is the athlete lookup used for side and cox checks.
type Roster map[string]model.Athlete

// NewRoster indexes athletes by id.
func NewRoster(athletes []model.Athlete) Roster {
	r := make(Roster, len(athletes))
	for _, a := range athletes {
		r[a.ID] = a
	}
	return r
}

// Completeness is the fill level of one boat.
type Completeness struct {
	Filled int `json:"filled"`
	Total  int `json:"total"`
}

// Complete reports whether every seat holds an athlete.
func (c Completeness) Complete() bool { return c.Filled >= c.Total }

// AssignedAthleteIDs returns every athlete assigned in any boat of piece.
func AssignedAthleteIDs(piece model.Piece) map[string]struct{} {
	out := make(map[string]struct{})
	for _, b := range piece.Boats {
		for _, a := range b.Assignments {
			out[a.AthleteID] = struct{}{}
		}
	}
	return out
}

// CanAssign reports whether athleteID may be seated in the boat identified by
// excludingBoat (id or name). It is false when the athlete already sits in a
// different boat of the piece. An empty excludingBoat checks every boat.
func CanAssign(piece model.Piece, athleteID, excludingBoat string) bool {
	skip := -1
	if excludingBoat != "" {
		skip = piece.BoatIndex(excludingBoat)
	}
	for i, b := range piece.Boats {
		if i == skip {
			continue
		}
		for _, a := range b.Assignments {
			if a.AthleteID == athleteID {
				return false
			}
		}
	}
	return true
}

// SidePreferenceMatches reports whether athlete suits a seat on seatSide.
// A cox seat needs CanCox. Port and starboard seats accept athletes whose
// preference is that side or Both.
func SidePreferenceMatches(athlete model.Athlete, seatSide model.Side) bool {
	switch seatSide {
	case model.SideCox:
		return athlete.CanCox
	case model.SidePort:
		return athlete.Side == model.SidePort || athlete.Side == model.SideBoth
	case model.SideStarboard:
		return athlete.Side == model.SideStarboard || athlete.Side == model.SideBoth
	}
	return true
}

// BoatCompleteness counts the seats of boat that hold an athlete against the
// seats cfg requires. Out of range seats do not count.
func BoatCompleteness(boat model.Boat, cfg seats.Config) Completeness {
	filled := make(map[int]struct{}, len(boat.Assignments))
	for _, a := range boat.Assignments {
		if a.AthleteID == "" {
			continue
		}
		if _, ok := cfg.Slot(a.SeatNumber); ok {
			filled[a.SeatNumber] = struct{}{}
		}
	}
	return Completeness{Filled: len(filled), Total: cfg.SeatCount()}
}

// Assign places a in the boat identified by boatKey (id or name) and returns
// the edited piece. The input piece is never changed. Structural violations
// are rejected with an error wrapping ErrStructural. An empty a.Side is
// filled from the seat layout.
func Assign(piece model.Piece, boatKey string, a model.Assignment, cfg seats.Config) (model.Piece, error) {
	idx := piece.BoatIndex(boatKey)
	if idx < 0 {
		return piece, fmt.Errorf("%w: %q", ErrUnknownBoat, boatKey)
	}
	boat := piece.Boats[idx]

	if strings.TrimSpace(a.AthleteID) == "" {
		return piece, fmt.Errorf("%w: %s: seat %d has no athlete", ErrStructural, CodeMissingAthlete, a.SeatNumber)
	}
	slot, ok := cfg.Slot(a.SeatNumber)
	if !ok {
		return piece, fmt.Errorf("%w: %s: seat %d outside 1..%d for %s",
			ErrStructural, CodeSeatOutOfRange, a.SeatNumber, cfg.SeatCount(), cfg.BoatClass)
	}
	if !CanAssign(piece, a.AthleteID, boatKey) {
		return piece, fmt.Errorf("%w: %s: athlete %s already rows in another boat of this piece",
			ErrStructural, CodeAthleteDoubleBooked, a.AthleteID)
	}
	if cur, taken := boat.Seat(a.SeatNumber); taken && cur.AthleteID != a.AthleteID {
		return piece, fmt.Errorf("%w: %s: seat %d of %s is held by %s",
			ErrStructural, CodeDuplicateSeat, a.SeatNumber, boat.Name, cur.AthleteID)
	}

	if a.Side == model.SideNone {
		a.Side = slot.Side
	}
	return piece.WithBoat(idx, boat.WithAssignment(a)), nil
}

// Piece runs every piece-level check. roster may be nil, in which case side,
// cox and roster checks are skipped.
func Piece(piece model.Piece, cfg seats.Config, roster Roster) Report {
	var r Report
	at := Issue{PieceOrder: piece.SequenceOrder}

	if n := len(piece.Boats); n > MaxBoats {
		r.errorf(at, "%s: %d boats, at most %d allowed", CodeTooManyBoats, n, MaxBoats)
	} else if n < MinBoats {
		r.warnf(at, "%s: %d boat(s), comparisons need %d", CodeTooFewBoats, n, MinBoats)
	}

	// athlete id -> boat name it was first seen in
	seen := make(map[string]string)
	names := make(map[string]struct{}, len(piece.Boats))

	for _, boat := range piece.Boats {
		boatAt := at
		boatAt.BoatName = boat.Name

		if _, dup := names[boat.Name]; dup {
			r.errorf(boatAt, "%s: boat name %q used twice", CodeDuplicateBoatName, boat.Name)
		}
		names[boat.Name] = struct{}{}

		if !boat.HasFinishTime() {
			r.warnf(boatAt, "%s: no finish time recorded", CodeMissingFinishTime)
		}

		seatsTaken := make(map[int]string, len(boat.Assignments))
		for _, a := range boat.Assignments {
			seatAt := boatAt
			seatAt.SeatNumber = a.SeatNumber
			seatAt.AthleteID = a.AthleteID

			if strings.TrimSpace(a.AthleteID) == "" {
				r.errorf(seatAt, "%s: seat %d has no athlete", CodeMissingAthlete, a.SeatNumber)
				continue
			}
			slot, inRange := cfg.Slot(a.SeatNumber)
			if !inRange {
				r.errorf(seatAt, "%s: seat %d outside 1..%d", CodeSeatOutOfRange, a.SeatNumber, cfg.SeatCount())
			}
			if holder, dup := seatsTaken[a.SeatNumber]; dup {
				r.errorf(seatAt, "%s: seat %d already held by %s", CodeDuplicateSeat, a.SeatNumber, holder)
			} else {
				seatsTaken[a.SeatNumber] = a.AthleteID
			}
			if first, dup := seen[a.AthleteID]; dup {
				r.errorf(seatAt, "%s: athlete %s already rows in boat %s", CodeAthleteDoubleBooked, a.AthleteID, first)
			} else {
				seen[a.AthleteID] = boat.Name
			}

			if roster == nil || !inRange {
				continue
			}
			athlete, known := roster[a.AthleteID]
			if !known {
				r.warnf(seatAt, "%s: athlete %s is not on the roster", CodeUnknownAthlete, a.AthleteID)
				continue
			}
			checkSide(&r, seatAt, athlete, slot, cfg)
		}

		if c := BoatCompleteness(boat, cfg); !c.Complete() {
			r.warnf(boatAt, "%s: %d of %d seats filled", CodeIncompleteBoat, c.Filled, c.Total)
		}
	}
	return r
}

func checkSide(r *Report, at Issue, athlete model.Athlete, slot seats.Slot, cfg seats.Config) {
	if slot.Side == model.SideCox {
		if !SidePreferenceMatches(athlete, slot.Side) {
			r.warnf(at, "%s: %s cannot cox", CodeCoxNotQualified, athlete.DisplayName())
		}
		return
	}
	// Scullers hold two oars, and athletes without a stated side have no
	// preference to violate.
	if cfg.Sculling || athlete.Side == model.SideNone {
		return
	}
	if !SidePreferenceMatches(athlete, slot.Side) {
		r.warnf(at, "%s: %s prefers %s, seat is %s", CodeWrongSide, athlete.DisplayName(), athlete.Side, slot.Side)
	}
}

// Session validates every piece of session against the seat layout of its
// boat class.
func Session(session model.Session, roster Roster) Report {
	var r Report
	cfg := seats.ForClass(session.BoatClass)
	if cfg.Fallback {
		r.warnf(Issue{}, "%s: %q is not a known boat class, using %s layout",
			CodeUnknownBoatClass, session.BoatClass, seats.FallbackClass)
	}

	orders := make(map[int]struct{}, len(session.Pieces))
	for _, p := range session.OrderedPieces() {
		at := Issue{PieceOrder: p.SequenceOrder}
		if p.SequenceOrder < 1 {
			r.errorf(at, "%s: sequence order %d must be 1 or more", CodeInvalidSequence, p.SequenceOrder)
		}
		if _, dup := orders[p.SequenceOrder]; dup {
			r.errorf(at, "%s: sequence order %d used twice", CodeDuplicateSequence, p.SequenceOrder)
		}
		orders[p.SequenceOrder] = struct{}{}
		r.Merge(Piece(p, cfg, roster))
	}
	return r
}
