package cli

import "errors"

// Sentinel kinds for CLI errors.
var (
	ErrDraftFile = errors.New("invalid draft file")
	ErrPlanFile  = errors.New("invalid plan file")
	ErrInvalid   = errors.New("draft has structural errors")
)
