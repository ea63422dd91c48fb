package validate

import (
	"fmt"
	"strings"
)

// Severity separates hard errors from advisory warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Hard error codes.
const (
	CodeDuplicateSeat       = "duplicate_seat"
	CodeAthleteDoubleBooked = "athlete_double_booked"
	CodeSeatOutOfRange      = "seat_out_of_range"
	CodeTooManyBoats        = "too_many_boats"
	CodeDuplicateSequence   = "duplicate_sequence"
	CodeInvalidSequence     = "invalid_sequence"
	CodeDuplicateBoatName   = "duplicate_boat_name"
	CodeMissingAthlete      = "missing_athlete"
)

// Advisory codes.
const (
	CodeIncompleteBoat    = "incomplete_boat"
	CodeMissingFinishTime = "missing_finish_time"
	CodeWrongSide         = "wrong_side"
	CodeCoxNotQualified   = "cox_not_qualified"
	CodeTooFewBoats       = "too_few_boats"
	CodeUnknownBoatClass  = "unknown_boat_class"
	CodeUnknownAthlete    = "unknown_athlete"
)

// Issue is one finding of a validation pass. Location fields are zero when
// they do not apply.
type Issue struct {
	Severity   Severity `json:"severity"`
	Code       string   `json:"code"`
	PieceOrder int      `json:"pieceOrder,omitempty"`
	BoatName   string   `json:"boatName,omitempty"`
	SeatNumber int      `json:"seatNumber,omitempty"`
	AthleteID  string   `json:"athleteId,omitempty"`
	Message    string   `json:"message"`
}

func (i Issue) String() string {
	var loc []string
	if i.PieceOrder > 0 {
		loc = append(loc, fmt.Sprintf("piece %d", i.PieceOrder))
	}
	if i.BoatName != "" {
		loc = append(loc, "boat "+i.BoatName)
	}
	if i.SeatNumber > 0 {
		loc = append(loc, fmt.Sprintf("seat %d", i.SeatNumber))
	}
	if len(loc) == 0 {
		return i.Message
	}
	return strings.Join(loc, ", ") + ": " + i.Message
}

// Report collects the errors and warnings of a validation pass.
type Report struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// OK reports whether the pass found no hard errors.
func (r Report) OK() bool { return len(r.Errors) == 0 }

// Err returns an error wrapping ErrStructural when the report has hard
// errors, or nil.
func (r Report) Err() error {
	switch len(r.Errors) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%w: %s", ErrStructural, r.Errors[0])
	}
	return fmt.Errorf("%w: %s (and %d more)", ErrStructural, r.Errors[0], len(r.Errors)-1)
}

// Merge appends other's issues to r.
func (r *Report) Merge(other Report) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

func (r *Report) add(i Issue) {
	if i.Severity == SeverityError {
		r.Errors = append(r.Errors, i)
		return
	}
	r.Warnings = append(r.Warnings, i)
}

func (r *Report) errorf(i Issue, format string, args ...any) {
	i.Severity = SeverityError
	i.Message = fmt.Sprintf(format, args...)
	r.add(i)
}

func (r *Report) warnf(i Issue, format string, args ...any) {
	i.Severity = SeverityWarning
	i.Message = fmt.Sprintf(format, args...)
	r.add(i)
}
