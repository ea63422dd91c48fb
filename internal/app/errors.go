package service

import (
	"errors"

	"github.com/okian/oarbit/internal/domain/model"
)

// Sentinel errors returned by the service.
var (
	ErrInvalidInput     = model.ErrInvalidInput
	ErrNotStarted       = errors.New("service not started")
	ErrAlreadyProcessed = model.ErrAlreadyProcessed
)
