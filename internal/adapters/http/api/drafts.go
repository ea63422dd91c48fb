package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/projection"
	"github.com/okian/oarbit/internal/domain/validate"
	"github.com/okian/oarbit/pkg/logger"
)

// DraftsDependencies defines the operations on unsaved sessions.
type DraftsDependencies interface {
	Preview(ctx context.Context, draft model.Session) (projection.Projection, error)
	Validate(ctx context.Context, draft model.Session, athletes []model.Athlete) validate.DraftReport
}

// DraftRequest is the body of POST /preview and POST /validate.
type DraftRequest struct {
	Session  model.Session   `json:"session"`
	Athletes []model.Athlete `json:"athletes,omitempty"`
}

// DraftsHandler handles preview and validation of drafts.
type DraftsHandler struct {
	deps   DraftsDependencies
	logger logger.Logger
}

// NewDraftsHandler creates a new drafts handler.
func NewDraftsHandler(deps DraftsDependencies, log logger.Logger) *DraftsHandler {
	return &DraftsHandler{deps: deps, logger: log}
}

// HandlePreview handles POST /preview. A draft without comparable boats
// answers 200 with available set to false.
func (h *DraftsHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	const op = "api.preview"
	var req DraftRequest
	if err := decode(w, r, op, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err)
		return
	}
	p, err := h.deps.Preview(r.Context(), req.Session)
	if err != nil && !errors.Is(err, projection.ErrUnavailable) {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleValidate handles POST /validate.
func (h *DraftsHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	const op = "api.validate"
	var req DraftRequest
	if err := decode(w, r, op, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Validate(r.Context(), req.Session, req.Athletes))
}
