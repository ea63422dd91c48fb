package repository

import (
	"errors"

	"github.com/okian/oarbit/internal/domain/model"
)

// Sentinel kinds for repository errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidLimit     = errors.New("invalid leaderboard limit")
	ErrAlreadyProcessed = model.ErrAlreadyProcessed
	ErrConflict         = errors.New("conflicting record")
)
