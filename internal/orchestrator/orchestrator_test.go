package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/oarbit/internal/domain/dedupe"
	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/validate"
	"github.com/okian/oarbit/internal/orchestrator"
	. "github.com/smartystreets/goconvey/convey"
)

func ft(v float64) *float64 { return &v }

// fakeRemote hands out sequential ids and can fail a chosen call.
type fakeRemote struct {
	calls       []string
	assignments map[string][]model.Assignment
	boats       []model.BoatInput
	processed   map[string]bool
	n           int

	// failOn returns an error for the named call and its 1-based count.
	failOn func(call string, n int) error
	counts map[string]int
	onCall func(call string)
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		assignments: map[string][]model.Assignment{},
		processed:   map[string]bool{},
		counts:      map[string]int{},
	}
}

func (f *fakeRemote) call(name string) (string, error) {
	f.calls = append(f.calls, name)
	f.counts[name]++
	if f.onCall != nil {
		f.onCall(name)
	}
	if f.failOn != nil {
		if err := f.failOn(name, f.counts[name]); err != nil {
			return "", err
		}
	}
	f.n++
	return fmt.Sprintf("%s-%d", name, f.n), nil
}

func (f *fakeRemote) CreateSession(_ context.Context, _ model.SessionInput) (string, error) {
	return f.call("session")
}

func (f *fakeRemote) AddPiece(_ context.Context, in model.PieceInput) (string, error) {
	if in.SessionID == "" {
		return "", errors.New("piece without session")
	}
	return f.call("piece")
}

func (f *fakeRemote) AddBoat(_ context.Context, in model.BoatInput) (string, error) {
	if in.SessionID == "" || in.PieceID == "" {
		return "", errors.New("boat without parents")
	}
	id, err := f.call("boat")
	if err == nil {
		f.boats = append(f.boats, in)
	}
	return id, err
}

func (f *fakeRemote) SetAssignments(_ context.Context, boatID, sessionID string, a []model.Assignment) error {
	if boatID == "" || sessionID == "" {
		return errors.New("assignments without parents")
	}
	if _, err := f.call("assign"); err != nil {
		return err
	}
	f.assignments[boatID] = a
	return nil
}

func (f *fakeRemote) ProcessSession(_ context.Context, sessionID string) (model.ProcessResult, error) {
	if _, err := f.call("process"); err != nil {
		return model.ProcessResult{}, err
	}
	if f.processed[sessionID] {
		return model.ProcessResult{}, model.ErrAlreadyProcessed
	}
	f.processed[sessionID] = true
	return model.ProcessResult{SessionID: sessionID, UpdatedRatings: []model.RatingChange{{AthleteID: "x", OldRating: 1500, NewRating: 1516}}}, nil
}

func (f *fakeRemote) RecalculateAllRatings(_ context.Context) error {
	_, err := f.call("recalculate")
	return err
}

func twoPieceDraft() model.Session {
	crew := func(ids ...string) []model.Assignment {
		out := make([]model.Assignment, 0, len(ids))
		for i, id := range ids {
			out = append(out, model.Assignment{AthleteID: id, SeatNumber: i + 1})
		}
		return out
	}
	return model.Session{
		Date:      time.Date(2026, 4, 2, 6, 30, 0, 0, time.UTC),
		BoatClass: "2-",
		Pieces: []model.Piece{
			{SequenceOrder: 2, Boats: []model.Boat{
				{Name: "A", FinishTimeSeconds: ft(121), Assignments: crew("c", "b")},
				{Name: "B", FinishTimeSeconds: ft(123), Assignments: crew("a", "d")},
			}},
			{SequenceOrder: 1, Boats: []model.Boat{
				{Name: "A", FinishTimeSeconds: ft(120), Assignments: crew("a", "b")},
				{Name: "B", FinishTimeSeconds: ft(124), Assignments: crew("c", "d")},
			}},
		},
	}
}

func TestPlan(t *testing.T) {
	Convey("Given a plan for a two-piece draft", t, func() {
		plan := orchestrator.NewPlan(twoPieceDraft())

		Convey("Then the steps follow the dependency order", func() {
			kinds := make([]orchestrator.StepKind, 0, len(plan.Steps))
			for _, s := range plan.Steps {
				kinds = append(kinds, s.Kind)
			}
			So(kinds, ShouldResemble, []orchestrator.StepKind{
				orchestrator.StepCreateSession,
				orchestrator.StepAddPiece, orchestrator.StepAddPiece,
				orchestrator.StepAddBoat, orchestrator.StepAddBoat, orchestrator.StepAddBoat, orchestrator.StepAddBoat,
				orchestrator.StepSetAssignments, orchestrator.StepSetAssignments, orchestrator.StepSetAssignments, orchestrator.StepSetAssignments,
				orchestrator.StepProcessSession,
			})
			So(plan.Draft.Pieces[0].SequenceOrder, ShouldEqual, 1)
		})

		Convey("Then nothing is done yet", func() {
			So(plan.State(), ShouldEqual, orchestrator.StateDraft)
			So(plan.Next(), ShouldEqual, 0)
			So(plan.Complete(), ShouldBeFalse)
			So(plan.Created(), ShouldResemble, orchestrator.Created{})
		})
	})
}

func TestSubmit(t *testing.T) {
	Convey("Given an orchestrator over a working backend", t, func() {
		ctx := context.Background()
		remote := newFakeRemote()
		o := orchestrator.New(remote)

		Convey("When a draft is submitted", func() {
			plan, err := o.Submit(ctx, twoPieceDraft())

			Convey("Then every call is made once in order and the session is processed", func() {
				So(err, ShouldBeNil)
				So(remote.calls, ShouldResemble, []string{
					"session", "piece", "piece",
					"boat", "boat", "boat", "boat",
					"assign", "assign", "assign", "assign",
					"process",
				})
				So(plan.Complete(), ShouldBeTrue)
				So(plan.State(), ShouldEqual, orchestrator.StateProcessed)
				So(plan.Result, ShouldNotBeNil)
				So(plan.Result.UpdatedRatings, ShouldHaveLength, 1)
			})

			Convey("Then boats reference the piece created for their sequence order", func() {
				created := plan.Created()
				So(created.PieceIDs, ShouldHaveLength, 2)
				So(created.BoatIDs, ShouldHaveLength, 4)
				So(remote.boats[0].PieceID, ShouldEqual, created.PieceIDs[0])
				So(remote.boats[0].FinishTimeSeconds, ShouldNotBeNil)
				So(*remote.boats[0].FinishTimeSeconds, ShouldEqual, 120)
				So(remote.boats[2].PieceID, ShouldEqual, created.PieceIDs[1])
				So(remote.assignments[created.BoatIDs[0]][0].AthleteID, ShouldEqual, "a")
			})

			Convey("Then a second automatic trigger is refused without a call", func() {
				_, err := o.ProcessSession(ctx, plan.Created().SessionID)
				So(errors.Is(err, orchestrator.ErrAlreadyProcessed), ShouldBeTrue)
				So(remote.counts["process"], ShouldEqual, 1)

				So(o.Recalculate(ctx), ShouldBeNil)
				So(remote.counts["recalculate"], ShouldEqual, 1)
			})
		})

		Convey("When the draft has a structural error", func() {
			draft := twoPieceDraft()
			draft.Pieces[0].Boats[1].Assignments[0].AthleteID = "c"
			plan, err := o.Submit(ctx, draft)

			Convey("Then nothing is sent", func() {
				So(plan, ShouldBeNil)
				So(errors.Is(err, validate.ErrStructural), ShouldBeTrue)
				So(remote.calls, ShouldBeEmpty)
			})
		})
	})
}

func TestPartialFailure(t *testing.T) {
	Convey("Given a backend that fails the second boat of the second piece", t, func() {
		ctx := context.Background()
		remote := newFakeRemote()
		boom := errors.New("connection reset")
		remote.failOn = func(call string, n int) error {
			if call == "boat" && n == 4 {
				return boom
			}
			return nil
		}
		o := orchestrator.New(remote)

		plan, err := o.Submit(ctx, twoPieceDraft())

		Convey("Then the failure names the step and everything created before it", func() {
			var se *orchestrator.StepError
			So(errors.As(err, &se), ShouldBeTrue)
			So(errors.Is(err, orchestrator.ErrStepFailed), ShouldBeTrue)
			So(errors.Is(err, boom), ShouldBeTrue)

			So(se.Step.Kind, ShouldEqual, orchestrator.StepAddBoat)
			So(se.Step.Piece, ShouldEqual, 1)
			So(se.Step.Boat, ShouldEqual, 1)
			So(se.State, ShouldEqual, orchestrator.StatePiecesCreated)
			So(se.Created.SessionID, ShouldNotBeEmpty)
			So(se.Created.PieceIDs, ShouldHaveLength, 2)
			So(se.Created.BoatIDs, ShouldHaveLength, 3)
		})

		Convey("Then no assignments were attempted and nothing was undone", func() {
			So(remote.counts["assign"], ShouldEqual, 0)
			So(remote.counts["process"], ShouldEqual, 0)
			So(plan.Complete(), ShouldBeFalse)
		})

		Convey("When the plan is run again after the backend recovers", func() {
			remote.failOn = nil
			So(o.Run(ctx, plan), ShouldBeNil)

			Convey("Then it resumes at the failed step", func() {
				So(remote.counts["session"], ShouldEqual, 1)
				So(remote.counts["piece"], ShouldEqual, 2)
				So(remote.counts["boat"], ShouldEqual, 5)
				So(remote.counts["assign"], ShouldEqual, 4)
				So(plan.State(), ShouldEqual, orchestrator.StateProcessed)
			})
		})
	})

	Convey("Given a backend whose processing call fails", t, func() {
		ctx := context.Background()
		remote := newFakeRemote()
		remote.failOn = func(call string, n int) error {
			if call == "process" && n == 1 {
				return errors.New("timeout")
			}
			return nil
		}
		o := orchestrator.New(remote)
		plan, err := o.Submit(ctx, twoPieceDraft())

		Convey("Then the plan stops with every assignment set and may be retried", func() {
			So(errors.Is(err, orchestrator.ErrStepFailed), ShouldBeTrue)
			So(plan.State(), ShouldEqual, orchestrator.StateAssignmentsSet)

			So(o.Run(ctx, plan), ShouldBeNil)
			So(remote.counts["process"], ShouldEqual, 2)
			So(plan.State(), ShouldEqual, orchestrator.StateProcessed)
		})
	})
}

func TestCancellation(t *testing.T) {
	Convey("Given a submission that is cancelled after the first piece", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		remote := newFakeRemote()
		remote.onCall = func(call string) {
			if call == "piece" {
				cancel()
			}
		}
		o := orchestrator.New(remote)
		plan, err := o.Submit(ctx, twoPieceDraft())

		Convey("Then no further step is issued and the partial state is reported", func() {
			So(errors.Is(err, orchestrator.ErrCancelled), ShouldBeTrue)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)

			var se *orchestrator.StepError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.Step.Kind, ShouldEqual, orchestrator.StepAddPiece)
			So(se.Created.PieceIDs, ShouldHaveLength, 1)
			So(remote.calls, ShouldResemble, []string{"session", "piece"})
			So(plan.State(), ShouldEqual, orchestrator.StateSessionCreated)
		})
	})
}

func TestAutoProcessOff(t *testing.T) {
	Convey("Given an orchestrator that does not process automatically", t, func() {
		ctx := context.Background()
		remote := newFakeRemote()
		guard := dedupe.NewInMemoryDeduper()
		o := orchestrator.New(remote, orchestrator.WithAutoProcess(false), orchestrator.WithGuard(guard))

		plan, err := o.Submit(ctx, twoPieceDraft())

		Convey("Then the plan stops after the assignments", func() {
			So(err, ShouldBeNil)
			So(plan.State(), ShouldEqual, orchestrator.StateAssignmentsSet)
			So(remote.counts["process"], ShouldEqual, 0)
			So(plan.Complete(), ShouldBeFalse)
		})

		Convey("When another orchestrator sharing the guard finishes it", func() {
			auto := orchestrator.New(remote, orchestrator.WithGuard(guard))
			So(auto.Run(ctx, plan), ShouldBeNil)

			Convey("Then a third trigger is refused by the shared guard", func() {
				So(plan.State(), ShouldEqual, orchestrator.StateProcessed)
				_, err := o.ProcessSession(ctx, plan.Created().SessionID)
				So(errors.Is(err, orchestrator.ErrAlreadyProcessed), ShouldBeTrue)
				So(remote.counts["process"], ShouldEqual, 1)
			})
		})
	})

	Convey("Given a backend that already processed the session", t, func() {
		ctx := context.Background()
		remote := newFakeRemote()
		remote.processed["session-1"] = true
		o := orchestrator.New(remote, orchestrator.WithValidator(func(model.Session) validate.Report {
			return validate.Report{}
		}))

		_, err := o.Submit(ctx, twoPieceDraft())

		Convey("Then the backend refusal surfaces as already processed", func() {
			So(errors.Is(err, orchestrator.ErrAlreadyProcessed), ShouldBeTrue)
			So(errors.Is(err, orchestrator.ErrStepFailed), ShouldBeTrue)
		})
	})
}
