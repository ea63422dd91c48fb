package validate

import "errors"

var (
	// ErrStructural marks a hard violation that blocks submission.
	ErrStructural = errors.New("structural violation")
	// ErrUnknownBoat is returned when an edit targets a boat not in the piece.
	ErrUnknownBoat = errors.New("unknown boat")
)
