// Package service provides the backend service that stores seat-race
// sessions, serializes rating runs through the processing queue and serves
// the rating index to the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/oarbit/internal/adapters/mq/queue"
	"github.com/okian/oarbit/internal/adapters/mq/worker"
	"github.com/okian/oarbit/internal/adapters/repository"
	"github.com/okian/oarbit/internal/domain/dedupe"
	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/projection"
	"github.com/okian/oarbit/internal/domain/rating"
	"github.com/okian/oarbit/internal/domain/seats"
	"github.com/okian/oarbit/internal/domain/types"
	"github.com/okian/oarbit/internal/domain/validate"
	"github.com/okian/oarbit/pkg/logger"
	"github.com/okian/oarbit/pkg/metrics"
)

// Service implements the remote session operations and the rating reads.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     *repository.SQLiteStore
	index     *repository.RatingIndex
	engine    *rating.Engine
	projector *projection.Projector
	guard     dedupe.Deduper
	queue     *queue.InMemoryQueue
	pool      *worker.Pool

	// Configuration
	queueSize      int
	guardSize      int
	processTimeout time.Duration
	maxLimit       int

	// State
	started bool

	logger logger.Logger
}

// New constructs a Service on top of store.
func New(store *repository.SQLiteStore, opts ...Option) *Service {
	s := &Service{
		store:          store,
		index:          repository.NewRatingIndex(),
		engine:         rating.New(),
		queueSize:      64,
		processTimeout: 30 * time.Second,
		maxLimit:       100,
		logger:         logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.projector = projection.New(s.engine)
	s.guard = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.guardSize))
	s.newPipeline()
	return s
}

// newPipeline builds a fresh processing queue and its worker. A stopped
// pipeline cannot be reused: its queue is closed and its worker has exited.
func (s *Service) newPipeline() {
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	// One worker: two rating runs must never interleave.
	s.pool = worker.NewPool(1, s.queue, s,
		worker.WithLogger(s.logger),
		worker.WithJobTimeout(s.processTimeout),
	)
}

// Start loads the stored ratings into the index and starts the processing
// worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting rating service...")

	ratings, err := s.store.LoadRatings(ctx)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	s.index.Reset(ctx, ratings)

	if s.queue.IsClosed() {
		s.newPipeline()
	}
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Int("ratedAthletes", len(ratings)),
		logger.Int("queueSize", s.queueSize),
		logger.Float64("kFactor", s.engine.KFactor()),
		logger.String("tieBreak", string(s.engine.TieBreak())),
	)
	return nil
}

// Stop drains queued work and stops the worker. A stopped service can be
// started again.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping rating service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	s.logger.Info(ctx, "rating service stopped")
	return err
}

// pipeline returns the current queue when the service is running.
func (s *Service) pipeline() (*queue.InMemoryQueue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue, s.started
}

// CreateSession stores a session header and returns its id.
func (s *Service) CreateSession(ctx context.Context, in model.SessionInput) (string, error) {
	if strings.TrimSpace(in.BoatClass) == "" {
		return "", fmt.Errorf("%w: boat class is required", ErrInvalidInput)
	}
	if in.Date.IsZero() {
		return "", fmt.Errorf("%w: session date is required", ErrInvalidInput)
	}
	if cfg := seats.ForClass(in.BoatClass); cfg.Fallback {
		s.logger.Warn(ctx, "unknown boat class, using fallback seat layout",
			logger.String("boatClass", in.BoatClass),
			logger.String("fallback", seats.FallbackClass),
		)
	}

	id, err := s.store.CreateSession(ctx, model.Session{
		Date:        in.Date,
		BoatClass:   in.BoatClass,
		Conditions:  in.Conditions,
		Location:    in.Location,
		Description: in.Description,
	})
	if err != nil {
		metrics.RecordErrorByComponent("service", "create_session")
		return "", err
	}
	metrics.RecordSessionCreated()
	s.logger.Debug(ctx, "session created", logger.String("sessionId", id))
	return id, nil
}

// AddPiece stores a piece under an existing session.
func (s *Service) AddPiece(ctx context.Context, in model.PieceInput) (string, error) {
	if in.SessionID == "" {
		return "", fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if in.SequenceOrder < 1 {
		return "", fmt.Errorf("%w: %s: sequence order %d must be 1 or more",
			validate.ErrStructural, validate.CodeInvalidSequence, in.SequenceOrder)
	}
	if in.DistanceMeters != nil && *in.DistanceMeters <= 0 {
		return "", fmt.Errorf("%w: distance must be positive", ErrInvalidInput)
	}

	id, err := s.store.AddPiece(ctx, in.SessionID, model.Piece{
		SequenceOrder:  in.SequenceOrder,
		DistanceMeters: in.DistanceMeters,
		Direction:      in.Direction,
		Notes:          in.Notes,
	})
	if errors.Is(err, repository.ErrConflict) {
		return "", fmt.Errorf("%w: %s: %w", validate.ErrStructural, validate.CodeDuplicateSequence, err)
	}
	if err != nil {
		return "", err
	}
	metrics.RecordPieceCreated()
	return id, nil
}

// AddBoat stores a boat under an existing piece.
func (s *Service) AddBoat(ctx context.Context, in model.BoatInput) (string, error) {
	if in.SessionID == "" || in.PieceID == "" {
		return "", fmt.Errorf("%w: session and piece ids are required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Name) == "" {
		return "", fmt.Errorf("%w: boat name is required", ErrInvalidInput)
	}
	if in.FinishTimeSeconds != nil && *in.FinishTimeSeconds <= 0 {
		return "", fmt.Errorf("%w: finish time must be positive", ErrInvalidInput)
	}

	stored, err := s.store.LoadSession(ctx, in.SessionID)
	if err != nil {
		return "", err
	}
	piece, ok := findPiece(stored.Pieces, in.PieceID)
	if !ok {
		return "", fmt.Errorf("%w: piece %s in session %s", repository.ErrNotFound, in.PieceID, in.SessionID)
	}
	if len(piece.Boats) >= validate.MaxBoats {
		return "", fmt.Errorf("%w: %s: piece %d already has %d boats",
			validate.ErrStructural, validate.CodeTooManyBoats, piece.SequenceOrder, len(piece.Boats))
	}

	id, err := s.store.AddBoat(ctx, in.SessionID, in.PieceID, model.Boat{
		Name:              in.Name,
		FinishTimeSeconds: in.FinishTimeSeconds,
		HandicapSeconds:   in.HandicapSeconds,
	})
	if errors.Is(err, repository.ErrConflict) {
		return "", fmt.Errorf("%w: %s: %w", validate.ErrStructural, validate.CodeDuplicateBoatName, err)
	}
	if err != nil {
		return "", err
	}
	metrics.RecordBoatCreated()
	return id, nil
}

// SetAssignments replaces the crew of a boat. Every assignment is checked
// against the session's seat layout and the other boats of the piece before
// anything is written.
func (s *Service) SetAssignments(ctx context.Context, boatID, sessionID string, assignments []model.Assignment) error {
	if boatID == "" || sessionID == "" {
		return fmt.Errorf("%w: boat and session ids are required", ErrInvalidInput)
	}

	stored, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	piece, ok := pieceOfBoat(stored.Pieces, boatID)
	if !ok {
		return fmt.Errorf("%w: boat %s in session %s", repository.ErrNotFound, boatID, sessionID)
	}

	cfg := seats.ForClass(stored.BoatClass)
	idx := piece.BoatIndex(boatID)
	piece = piece.WithBoat(idx, model.Boat{ID: boatID, Name: piece.Boats[idx].Name})

	listed := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		if strings.TrimSpace(a.AthleteID) == "" {
			return fmt.Errorf("%w: athlete id is required for seat %d", ErrInvalidInput, a.SeatNumber)
		}
		if _, dup := listed[a.AthleteID]; dup {
			return fmt.Errorf("%w: %s: athlete %s listed twice for boat %s",
				validate.ErrStructural, validate.CodeAthleteDoubleBooked, a.AthleteID, boatID)
		}
		listed[a.AthleteID] = struct{}{}

		if piece, err = validate.Assign(piece, boatID, a, cfg); err != nil {
			return err
		}
	}

	crew := piece.Boats[idx].Assignments
	if err := s.store.SetAssignments(ctx, sessionID, boatID, crew); err != nil {
		return err
	}
	metrics.RecordAssignmentsSet(len(crew))
	return nil
}

// ProcessSession rates one stored session. A session is processed at most
// once; a second request fails with ErrAlreadyProcessed and the caller has
// to use RecalculateAllRatings instead.
func (s *Service) ProcessSession(ctx context.Context, sessionID string) (model.ProcessResult, error) {
	if sessionID == "" {
		return model.ProcessResult{}, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if s.guard.SeenAndRecord(ctx, sessionID) {
		metrics.RecordProcessingRejected()
		return model.ProcessResult{}, fmt.Errorf("%w: %s", ErrAlreadyProcessed, sessionID)
	}

	res, err := s.submit(ctx, model.ProcessJob{SessionID: sessionID})
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			metrics.RecordProcessingRejected()
		} else {
			s.guard.Unrecord(ctx, sessionID)
		}
		return model.ProcessResult{}, err
	}
	return res, nil
}

// RecalculateAllRatings recomputes every rating from scratch by replaying
// all stored sessions ordered by date, then creation time. Running it twice
// gives the same ratings.
func (s *Service) RecalculateAllRatings(ctx context.Context) error {
	_, err := s.submit(ctx, model.ProcessJob{Recalculate: true})
	return err
}

func (s *Service) submit(ctx context.Context, job model.ProcessJob) (model.ProcessResult, error) {
	q, started := s.pipeline()
	if !started {
		return model.ProcessResult{}, ErrNotStarted
	}
	job.JobID = uuid.NewString()

	j := queue.NewJob(job)
	if err := q.Enqueue(ctx, j); err != nil {
		return model.ProcessResult{}, fmt.Errorf("enqueue processing job: %w", err)
	}
	return j.Wait(ctx)
}

// Session loads the stored graph of one session.
func (s *Service) Session(ctx context.Context, id string) (repository.StoredSession, error) {
	return s.store.LoadSession(ctx, id)
}

// Leaderboard returns the top ranked athletes. limit is capped at the
// configured maximum.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return s.index.TopN(ctx, limit)
}

// Rating returns the rating and rank of one athlete.
func (s *Service) Rating(ctx context.Context, athleteID string) (types.Entry, error) {
	return s.index.Rank(ctx, athleteID)
}

// Preview projects the rating and rank effect of an unsaved session against
// the current ratings. Nothing is stored. A draft with structural errors is
// refused with an error wrapping validate.ErrStructural.
func (s *Service) Preview(ctx context.Context, draft model.Session) (projection.Projection, error) {
	if err := validate.Session(draft, nil).Err(); err != nil {
		return projection.Projection{}, err
	}
	p, err := s.projector.Project(s.index.Snapshot(ctx), draft)
	metrics.RecordProjection(err == nil)
	return p, err
}

// Validate checks a draft session and reports the switches between its
// pieces.
func (s *Service) Validate(_ context.Context, draft model.Session, athletes []model.Athlete) validate.DraftReport {
	var roster validate.Roster
	if len(athletes) > 0 {
		roster = validate.NewRoster(athletes)
	}
	report := validate.Draft(draft, roster)
	for _, i := range report.Errors {
		metrics.RecordValidationIssue(string(i.Severity), i.Code)
	}
	for _, i := range report.Warnings {
		metrics.RecordValidationIssue(string(i.Severity), i.Code)
	}
	return report
}

// Ping checks the database connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	q, started := s.pipeline()

	stats := map[string]interface{}{
		"started":        started,
		"queueCapacity":  q.Capacity(),
		"queueLength":    q.Len(ctx),
		"guardSize":      s.guard.Size(),
		"ratedAthletes":  s.index.Count(ctx),
		"kFactor":        s.engine.KFactor(),
		"defaultRating":  s.engine.DefaultRating(),
		"ratingFloor":    s.engine.Floor(),
		"tieBreak":       string(s.engine.TieBreak()),
		"maxLeaderboard": s.maxLimit,
	}

	total, processed, err := s.store.CountSessions(ctx)
	if err != nil {
		s.logger.Warn(ctx, "count sessions failed", logger.Error(err))
	} else {
		stats["sessions"] = total
		stats["processedSessions"] = processed
	}
	return stats
}

func findPiece(pieces []model.Piece, id string) (model.Piece, bool) {
	for _, p := range pieces {
		if p.ID == id {
			return p, true
		}
	}
	return model.Piece{}, false
}

func pieceOfBoat(pieces []model.Piece, boatID string) (model.Piece, bool) {
	for _, p := range pieces {
		for _, b := range p.Boats {
			if b.ID == boatID {
				return p, true
			}
		}
	}
	return model.Piece{}, false
}
