package rating

// Option configures an Engine.
type Option func(*Engine)

// WithKFactor sets the maximum rating change per processing run.
// Non-positive values are ignored.
func WithKFactor(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.kFactor = k
		}
	}
}

// WithDefaultRating sets the rating assumed for athletes without one.
// Non-positive values are ignored.
func WithDefaultRating(r float64) Option {
	return func(e *Engine) {
		if r > 0 {
			e.defaultRating = r
		}
	}
}

// WithRatingFloor sets the lowest rating an update can produce.
// Negative values are ignored.
func WithRatingFloor(f float64) Option {
	return func(e *Engine) {
		if f >= 0 {
			e.floor = f
		}
	}
}

// WithTieBreak selects how boats with equal effective times are ranked.
// Unknown policies are ignored.
func WithTieBreak(tb TieBreak) Option {
	return func(e *Engine) {
		switch tb {
		case TieBreakInputOrder, TieBreakShared:
			e.tieBreak = tb
		}
	}
}
