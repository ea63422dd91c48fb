package orchestrator

import (
	"github.com/okian/oarbit/internal/domain/dedupe"
	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/validate"
	"github.com/okian/oarbit/pkg/logger"
)

// Validator checks a draft before anything is sent.
type Validator func(model.Session) validate.Report

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithGuard sets the record of sessions already sent for processing. Share
// one guard between orchestrators that talk to the same backend.
func WithGuard(g dedupe.Deduper) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.guard = g
		}
	}
}

// WithValidator replaces the draft check. The default runs the structural
// checks without a roster.
func WithValidator(v Validator) Option {
	return func(o *Orchestrator) {
		if v != nil {
			o.validate = v
		}
	}
}

// WithAutoProcess controls whether a plan ends by processing the session.
// When off, Run stops in StateAssignmentsSet and leaves the processing step
// pending.
func WithAutoProcess(on bool) Option {
	return func(o *Orchestrator) {
		o.autoProcess = on
	}
}
