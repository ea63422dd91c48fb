// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/oarbit/internal/adapters/mq/queue"
	"github.com/okian/oarbit/internal/adapters/repository"
	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/projection"
	"github.com/okian/oarbit/internal/domain/timefmt"
	"github.com/okian/oarbit/internal/domain/types"
	"github.com/okian/oarbit/internal/domain/validate"
	"github.com/okian/oarbit/internal/orchestrator"
	"github.com/okian/oarbit/pkg/logger"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Error codes written in error responses.
const (
	CodeBadRequest          = "bad_request"
	CodeLimitExceeded       = "limit_exceeded"
	CodeNotFound            = "not_found"
	CodeAlreadyProcessed    = "already_processed"
	CodeConflict            = "conflict"
	CodeStructuralViolation = "structural_violation"
	CodeBackpressure        = "backpressure"
	CodeUnavailable         = "unavailable"
	CodeInternal            = "internal_error"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	orchestrator.Remote

	Session(ctx context.Context, id string) (repository.StoredSession, error)
	Leaderboard(ctx context.Context, limit int) ([]Entry, error)
	Rating(ctx context.Context, athleteID string) (Entry, error)
	Preview(ctx context.Context, draft model.Session) (projection.Projection, error)
	Validate(ctx context.Context, draft model.Session, athletes []model.Athlete) validate.DraftReport
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	sessionsHandler    *SessionsHandler
	leaderboardHandler *LeaderboardHandler
	draftsHandler      *DraftsHandler
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxLimit int
	logger   logger.Logger
}

// WithMaxLimit caps GET /ratings?limit.
func WithMaxLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxLimit = n
		}
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{maxLimit: 100, logger: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		sessionsHandler:    NewSessionsHandler(deps, cfg.logger),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.maxLimit, cfg.logger),
		draftsHandler:      NewDraftsHandler(deps, cfg.logger),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /sessions", MetricsMiddleware(s.sessionsHandler.HandleCreateSession, "sessions"))
	mux.HandleFunc("GET /sessions/{id}", MetricsMiddleware(s.sessionsHandler.HandleGetSession, "session"))
	mux.HandleFunc("POST /sessions/{id}/pieces", MetricsMiddleware(s.sessionsHandler.HandleAddPiece, "pieces"))
	mux.HandleFunc("POST /sessions/{id}/pieces/{pieceID}/boats", MetricsMiddleware(s.sessionsHandler.HandleAddBoat, "boats"))
	mux.HandleFunc("PUT /sessions/{id}/boats/{boatID}/assignments", MetricsMiddleware(s.sessionsHandler.HandleSetAssignments, "assignments"))
	mux.HandleFunc("POST /sessions/{id}/process", MetricsMiddleware(s.sessionsHandler.HandleProcess, "process"))

	mux.HandleFunc("GET /ratings", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "ratings"))
	mux.HandleFunc("GET /ratings/{athleteID}", MetricsMiddleware(s.leaderboardHandler.HandleGetRating, "rating"))
	mux.HandleFunc("POST /ratings/recalculate", MetricsMiddleware(s.leaderboardHandler.HandleRecalculate, "recalculate"))

	mux.HandleFunc("POST /preview", MetricsMiddleware(s.draftsHandler.HandlePreview, "preview"))
	mux.HandleFunc("POST /validate", MetricsMiddleware(s.draftsHandler.HandleValidate, "validate"))
}

type idResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	if rec, ok := w.(*statusRecorder); ok {
		rec.code = code
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}

// writeFailure maps err to a status and code and writes it. Server-side
// failures are logged.
func writeFailure(ctx context.Context, w http.ResponseWriter, log logger.Logger, err error) {
	status, code := Classify(err)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.Error(err))
	}
	writeError(w, status, code, err)
}

// Classify maps an error to its HTTP status and error code.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, validate.ErrStructural):
		return http.StatusUnprocessableEntity, CodeStructuralViolation
	case errors.Is(err, model.ErrAlreadyProcessed):
		return http.StatusConflict, CodeAlreadyProcessed
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, timefmt.ErrInvalidTime):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, CodeBackpressure
	case errors.Is(err, ErrUnavailable), errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, CodeUnavailable
	}
	return http.StatusInternalServerError, CodeInternal
}

func decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}
