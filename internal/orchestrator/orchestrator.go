// Package orchestrator persists a draft session through a remote backend as
// an explicit, resumable sequence of dependent calls.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/oarbit/internal/domain/dedupe"
	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/validate"
	"github.com/okian/oarbit/pkg/logger"
	"github.com/okian/oarbit/pkg/metrics"
)

// Remote is the backend that stores sessions and rates them.
type Remote interface {
	CreateSession(ctx context.Context, in model.SessionInput) (string, error)
	AddPiece(ctx context.Context, in model.PieceInput) (string, error)
	AddBoat(ctx context.Context, in model.BoatInput) (string, error)
	SetAssignments(ctx context.Context, boatID, sessionID string, assignments []model.Assignment) error
	ProcessSession(ctx context.Context, sessionID string) (model.ProcessResult, error)
	RecalculateAllRatings(ctx context.Context) error
}

// Orchestrator runs creation plans one step at a time.
type Orchestrator struct {
	remote      Remote
	guard       dedupe.Deduper
	validate    Validator
	autoProcess bool
	logger      logger.Logger
}

// New returns an Orchestrator that talks to remote.
func New(remote Remote, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		remote:      remote,
		guard:       dedupe.NewInMemoryDeduper(),
		validate:    func(s model.Session) validate.Report { return validate.Session(s, nil) },
		autoProcess: true,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit validates draft and persists it. A draft with structural errors is
// refused before any remote call. The returned plan reflects every step that
// completed, also when an error is returned.
func (o *Orchestrator) Submit(ctx context.Context, draft model.Session) (*Plan, error) {
	report := o.validate(draft)
	for _, w := range report.Warnings {
		o.logger.Warn(ctx, "draft advisory", logger.String("code", w.Code), logger.String("issue", w.String()))
	}
	if err := report.Err(); err != nil {
		metrics.RecordOrchestratorStep("validate", "rejected")
		return nil, err
	}

	plan := NewPlan(draft)
	return plan, o.Run(ctx, plan)
}

// Run executes the pending steps of plan in order. It stops at the first
// failure and returns a *StepError; completed steps stay done, so calling
// Run again resumes where it stopped.
func (o *Orchestrator) Run(ctx context.Context, plan *Plan) error {
	for i := plan.Next(); i >= 0; i = plan.Next() {
		step := plan.Steps[i]
		if step.Kind == StepProcessSession && !o.autoProcess {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return o.fail(ctx, plan, step, "cancelled", fmt.Errorf("%w: %w", ErrCancelled, err))
		}

		id, err := o.exec(ctx, plan, step)
		if err != nil {
			if ctx.Err() != nil {
				err = fmt.Errorf("%w: %w", ErrCancelled, err)
			}
			return o.fail(ctx, plan, step, "failed", err)
		}
		plan.complete(i, id)

		metrics.RecordOrchestratorStep(string(step.Kind), "ok")
		o.logger.Debug(ctx, "step done",
			logger.String("step", string(step.Kind)),
			logger.String("id", id),
			logger.String("state", string(plan.State())),
		)
	}
	return nil
}

func (o *Orchestrator) exec(ctx context.Context, plan *Plan, step Step) (string, error) {
	switch step.Kind {
	case StepCreateSession:
		return o.remote.CreateSession(ctx, plan.Draft.Input())
	case StepAddPiece:
		return o.remote.AddPiece(ctx, plan.piece(step).Input(step.SessionID))
	case StepAddBoat:
		return o.remote.AddBoat(ctx, plan.boat(step).Input(step.SessionID, step.PieceID))
	case StepSetAssignments:
		return step.BoatID, o.remote.SetAssignments(ctx, step.BoatID, step.SessionID, plan.boat(step).Assignments)
	case StepProcessSession:
		res, err := o.ProcessSession(ctx, step.SessionID)
		if err != nil {
			return "", err
		}
		plan.Result = &res
		return step.SessionID, nil
	}
	return "", fmt.Errorf("unknown step kind %q", step.Kind)
}

// ProcessSession asks the backend to rate a stored session. Each session is
// sent at most once; a repeat fails with ErrAlreadyProcessed and the caller
// has to use Recalculate. A failed attempt that the backend did not apply
// may be retried.
func (o *Orchestrator) ProcessSession(ctx context.Context, sessionID string) (model.ProcessResult, error) {
	if o.guard.SeenAndRecord(ctx, sessionID) {
		metrics.RecordProcessingRejected()
		return model.ProcessResult{}, fmt.Errorf("%w: %s was already sent for processing", ErrAlreadyProcessed, sessionID)
	}

	res, err := o.remote.ProcessSession(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrAlreadyProcessed) {
		o.guard.Unrecord(ctx, sessionID)
	}
	return res, err
}

// Recalculate recomputes every rating from the stored history. It is the
// explicit path for re-rating sessions that were already processed.
func (o *Orchestrator) Recalculate(ctx context.Context) error {
	if err := o.remote.RecalculateAllRatings(ctx); err != nil {
		metrics.RecordOrchestratorStep("recalculate", "failed")
		return err
	}
	metrics.RecordOrchestratorStep("recalculate", "ok")
	o.logger.Info(ctx, "ratings recalculated")
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, plan *Plan, step Step, outcome string, err error) error {
	se := &StepError{
		Step:    step,
		State:   plan.State(),
		Created: plan.Created(),
		Err:     err,
	}
	metrics.RecordOrchestratorStep(string(step.Kind), outcome)
	o.logger.Error(ctx, "orchestration stopped",
		logger.String("step", string(step.Kind)),
		logger.String("state", string(se.State)),
		logger.String("sessionId", se.Created.SessionID),
		logger.Int("piecesCreated", len(se.Created.PieceIDs)),
		logger.Int("boatsCreated", len(se.Created.BoatIDs)),
		logger.Error(err),
	)
	return se
}
