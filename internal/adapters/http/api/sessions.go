package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/oarbit/internal/adapters/repository"
	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/timefmt"
	"github.com/okian/oarbit/internal/orchestrator"
	"github.com/okian/oarbit/pkg/logger"
)

// SessionsDependencies defines the session graph operations.
type SessionsDependencies interface {
	orchestrator.Remote
	Session(ctx context.Context, id string) (repository.StoredSession, error)
}

// SessionsHandler handles the session, piece, boat and assignment routes.
type SessionsHandler struct {
	deps   SessionsDependencies
	logger logger.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionsDependencies, log logger.Logger) *SessionsHandler {
	return &SessionsHandler{deps: deps, logger: log}
}

// BoatRequest is the body of POST /sessions/{id}/pieces/{pieceID}/boats.
// FinishTime accepts "m:ss.t" and is used when FinishTimeSeconds is absent.
type BoatRequest struct {
	model.BoatInput
	FinishTime string `json:"finishTime,omitempty"`
}

// AssignmentsRequest is the body of PUT /sessions/{id}/boats/{boatID}/assignments.
type AssignmentsRequest struct {
	Assignments []model.Assignment `json:"assignments"`
}

// HandleCreateSession handles POST /sessions.
func (h *SessionsHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	var in model.SessionInput
	if err := decode(w, r, op, &in); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err)
		return
	}
	id, err := h.deps.CreateSession(r.Context(), in)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// HandleGetSession handles GET /sessions/{id}.
func (h *SessionsHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	s, err := h.deps.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleAddPiece handles POST /sessions/{id}/pieces.
func (h *SessionsHandler) HandleAddPiece(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_piece"
	var in model.PieceInput
	if err := decode(w, r, op, &in); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err)
		return
	}
	in.SessionID = r.PathValue("id")

	id, err := h.deps.AddPiece(r.Context(), in)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// HandleAddBoat handles POST /sessions/{id}/pieces/{pieceID}/boats.
func (h *SessionsHandler) HandleAddBoat(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_boat"
	var req BoatRequest
	if err := decode(w, r, op, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err)
		return
	}
	in := req.BoatInput
	in.SessionID = r.PathValue("id")
	in.PieceID = r.PathValue("pieceID")

	if in.FinishTimeSeconds == nil && strings.TrimSpace(req.FinishTime) != "" {
		secs, err := timefmt.Parse(req.FinishTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, WrapKind(op, ErrBadRequest, err))
			return
		}
		in.FinishTimeSeconds = &secs
	}

	id, err := h.deps.AddBoat(r.Context(), in)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// HandleSetAssignments handles PUT /sessions/{id}/boats/{boatID}/assignments.
func (h *SessionsHandler) HandleSetAssignments(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_assignments"
	var req AssignmentsRequest
	if err := decode(w, r, op, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err)
		return
	}
	err := h.deps.SetAssignments(r.Context(), r.PathValue("boatID"), r.PathValue("id"), req.Assignments)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleProcess handles POST /sessions/{id}/process.
func (h *SessionsHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	const op = "api.process_session"
	res, err := h.deps.ProcessSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
