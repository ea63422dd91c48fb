package orchestrator

import (
	"github.com/okian/oarbit/internal/domain/model"
)

// State is the persistence progress of a draft session.
type State string

// States in the order a plan moves through them.
const (
	StateDraft          State = "draft"
	StateSessionCreated State = "session_created"
	StatePiecesCreated  State = "pieces_created"
	StateBoatsCreated   State = "boats_created"
	StateAssignmentsSet State = "assignments_set"
	StateProcessed      State = "processed"
)

// StepKind names the remote call a step makes.
type StepKind string

// Step kinds.
const (
	StepCreateSession  StepKind = "create_session"
	StepAddPiece       StepKind = "add_piece"
	StepAddBoat        StepKind = "add_boat"
	StepSetAssignments StepKind = "set_assignments"
	StepProcessSession StepKind = "process_session"
)

// stateAfter maps each step kind to the state reached once every step of
// that kind is done.
var stateAfter = []struct {
	kind  StepKind
	state State
}{
	{StepCreateSession, StateSessionCreated},
	{StepAddPiece, StatePiecesCreated},
	{StepAddBoat, StateBoatsCreated},
	{StepSetAssignments, StateAssignmentsSet},
	{StepProcessSession, StateProcessed},
}

// Step is one remote call of a plan. Piece and Boat index into the plan's
// draft; they are -1 when they do not apply. SessionID, PieceID and BoatID
// are filled in as the parents are created, so a pending step always
// carries the ids it needs.
type Step struct {
	Kind      StepKind `json:"kind"`
	Piece     int      `json:"piece"`
	Boat      int      `json:"boat"`
	SessionID string   `json:"sessionId,omitempty"`
	PieceID   string   `json:"pieceId,omitempty"`
	BoatID    string   `json:"boatId,omitempty"`
	Done      bool     `json:"done"`
}

// Created lists the ids of every remote entity a plan has created.
type Created struct {
	SessionID string   `json:"sessionId,omitempty"`
	PieceIDs  []string `json:"pieceIds,omitempty"`
	BoatIDs   []string `json:"boatIds,omitempty"`
}

// Plan is the ordered list of remote calls that persist one draft. A plan
// can be run again after a failure and resumes at the first pending step.
type Plan struct {
	Draft  model.Session        `json:"draft"`
	Steps  []Step               `json:"steps"`
	Result *model.ProcessResult `json:"result,omitempty"`
}

// NewPlan builds the creation plan for draft: the session, its pieces in
// sequence order, their boats in list order, the crews of those boats in the
// same order and finally processing.
func NewPlan(draft model.Session) *Plan {
	draft.Pieces = draft.OrderedPieces()

	steps := []Step{{Kind: StepCreateSession, Piece: -1, Boat: -1}}
	for i := range draft.Pieces {
		steps = append(steps, Step{Kind: StepAddPiece, Piece: i, Boat: -1})
	}
	for i, p := range draft.Pieces {
		for j := range p.Boats {
			steps = append(steps, Step{Kind: StepAddBoat, Piece: i, Boat: j})
		}
	}
	for i, p := range draft.Pieces {
		for j := range p.Boats {
			steps = append(steps, Step{Kind: StepSetAssignments, Piece: i, Boat: j})
		}
	}
	steps = append(steps, Step{Kind: StepProcessSession, Piece: -1, Boat: -1})

	return &Plan{Draft: draft, Steps: steps}
}

// Next returns the index of the first pending step, or -1 when the plan is
// complete.
func (p *Plan) Next() int {
	for i, s := range p.Steps {
		if !s.Done {
			return i
		}
	}
	return -1
}

// Complete reports whether every step is done.
func (p *Plan) Complete() bool { return p.Next() < 0 }

// State returns the furthest state whose steps are all done.
func (p *Plan) State() State {
	state := StateDraft
	for _, sa := range stateAfter {
		total, done := p.progress(sa.kind)
		if done < total || (total == 0 && sa.kind == StepCreateSession) {
			break
		}
		state = sa.state
	}
	return state
}

func (p *Plan) progress(kind StepKind) (total, done int) {
	for _, s := range p.Steps {
		if s.Kind != kind {
			continue
		}
		total++
		if s.Done {
			done++
		}
	}
	return total, done
}

// Created returns the ids created so far, pieces and boats in plan order.
func (p *Plan) Created() Created {
	var c Created
	for _, s := range p.Steps {
		if !s.Done {
			continue
		}
		switch s.Kind {
		case StepCreateSession:
			c.SessionID = s.SessionID
		case StepAddPiece:
			c.PieceIDs = append(c.PieceIDs, s.PieceID)
		case StepAddBoat:
			c.BoatIDs = append(c.BoatIDs, s.BoatID)
		}
	}
	return c
}

// complete marks step i done with the id it created and hands that id to
// every step below it.
func (p *Plan) complete(i int, id string) {
	s := &p.Steps[i]
	s.Done = true

	switch s.Kind {
	case StepCreateSession:
		for j := range p.Steps {
			p.Steps[j].SessionID = id
		}
	case StepAddPiece:
		for j := range p.Steps {
			if p.Steps[j].Piece == s.Piece {
				p.Steps[j].PieceID = id
			}
		}
	case StepAddBoat:
		for j := range p.Steps {
			if p.Steps[j].Piece == s.Piece && p.Steps[j].Boat == s.Boat {
				p.Steps[j].BoatID = id
			}
		}
	}
}

func (p *Plan) piece(s Step) model.Piece { return p.Draft.Pieces[s.Piece] }

func (p *Plan) boat(s Step) model.Boat { return p.Draft.Pieces[s.Piece].Boats[s.Boat] }
