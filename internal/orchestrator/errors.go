package orchestrator

import (
	"errors"
	"fmt"

	"github.com/okian/oarbit/internal/domain/model"
)

// Sentinel errors returned by the orchestrator.
var (
	ErrStepFailed       = errors.New("orchestration step failed")
	ErrCancelled        = errors.New("orchestration cancelled")
	ErrAlreadyProcessed = model.ErrAlreadyProcessed
)

// StepError reports where a plan stopped. Nothing created before the failure
// is rolled back; Created lists it so the caller can resume or clean up.
type StepError struct {
	Step    Step
	State   State
	Created Created
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed in state %s: %v", e.Step.Kind, e.State, e.Err)
}

// Unwrap matches both ErrStepFailed and the cause.
func (e *StepError) Unwrap() []error { return []error{ErrStepFailed, e.Err} }
