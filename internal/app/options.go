package service

import (
	"time"

	"github.com/okian/oarbit/internal/domain/rating"
	"github.com/okian/oarbit/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEngine sets the rating engine used for processing and previews.
func WithEngine(e *rating.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithQueueSize sets the capacity of the processing queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithGuardSize bounds the processed-session guard. Zero keeps it unbounded.
func WithGuardSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.guardSize = size
		}
	}
}

// WithProcessTimeout bounds a single processing or recalculation run.
func WithProcessTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.processTimeout = d
		}
	}
}

// WithMaxLeaderboardLimit caps the number of entries a leaderboard read
// returns.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}
