package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/pkg/logger"
	"github.com/okian/oarbit/pkg/metrics"
)

// Process runs one job from the processing queue. It is only called by the
// service's single worker.
func (s *Service) Process(ctx context.Context, job model.ProcessJob) (model.ProcessResult, error) {
	if job.Recalculate {
		return model.ProcessResult{}, s.recalculate(ctx)
	}
	return s.processSession(ctx, job.SessionID)
}

func (s *Service) processSession(ctx context.Context, sessionID string) (model.ProcessResult, error) {
	start := time.Now()

	stored, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		return model.ProcessResult{}, err
	}
	if stored.Processed {
		return model.ProcessResult{}, fmt.Errorf("%w: %s", ErrAlreadyProcessed, sessionID)
	}

	current, err := s.store.LoadRatings(ctx)
	if err != nil {
		return model.ProcessResult{}, err
	}
	ratings := make(map[string]float64, len(current))
	for _, r := range current {
		ratings[r.AthleteID] = r.Rating
	}

	result := s.engine.Compute(stored.OrderedPieces(), ratings)

	rows, err := s.store.ApplyProcessing(ctx, sessionID, result.Updates)
	if err != nil {
		return model.ProcessResult{}, err
	}
	s.index.Apply(ctx, rows)

	metrics.RecordSessionProcessed(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordComparisons(result.Comparisons)
	for _, u := range result.Updates {
		metrics.ObserveRatingDelta(u.Delta)
	}

	s.logger.Info(ctx, "session processed",
		logger.String("sessionId", sessionID),
		logger.Int("pieces", len(stored.Pieces)),
		logger.Int("comparisons", result.Comparisons),
		logger.Int("updated", len(result.Updates)),
		logger.Duration("took", time.Since(start)),
	)

	return model.ProcessResult{SessionID: sessionID, UpdatedRatings: result.Changes()}, nil
}

// recalculate replays every stored session in date order starting from an
// empty rating table, then swaps the result in.
func (s *Service) recalculate(ctx context.Context) error {
	start := time.Now()

	ids, err := s.store.ListSessionIDs(ctx)
	if err != nil {
		return err
	}

	ratings := make(map[string]float64)
	totals := make(map[string]*model.Rating)
	var order []string
	comparisons := 0

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("recalculate: %w", err)
		}
		stored, err := s.store.LoadSession(ctx, id)
		if err != nil {
			return err
		}

		result := s.engine.Compute(stored.OrderedPieces(), ratings)
		result.Apply(ratings)
		comparisons += result.Comparisons

		for _, u := range result.Updates {
			t, ok := totals[u.AthleteID]
			if !ok {
				t = &model.Rating{AthleteID: u.AthleteID}
				totals[u.AthleteID] = t
				order = append(order, u.AthleteID)
			}
			t.Rating = u.NewRating
			t.Races += u.Races
			t.Wins += u.Wins
		}
	}

	out := make([]model.Rating, 0, len(order))
	for _, id := range order {
		out = append(out, *totals[id])
	}

	if err := s.store.ReplaceAllRatings(ctx, out, ids); err != nil {
		return err
	}
	s.index.Reset(ctx, out)
	for _, id := range ids {
		s.guard.SeenAndRecord(ctx, id)
	}

	s.logger.Info(ctx, "ratings recalculated",
		logger.Int("sessions", len(ids)),
		logger.Int("athletes", len(out)),
		logger.Int("comparisons", comparisons),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}
