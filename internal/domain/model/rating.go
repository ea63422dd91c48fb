package model

import "time"

// Rating is the persisted seat-race rating of one athlete.
type Rating struct {
	AthleteID string    `json:"athleteId"`
	Rating    float64   `json:"rating"`
	Races     int       `json:"races"`
	Wins      int       `json:"wins"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// RatingChange is one athlete's before/after value from a processing run.
type RatingChange struct {
	AthleteID string  `json:"athleteId"`
	OldRating float64 `json:"oldRating"`
	NewRating float64 `json:"newRating"`
}

// ProcessResult is returned by processSession.
type ProcessResult struct {
	SessionID      string         `json:"sessionId"`
	UpdatedRatings []RatingChange `json:"updatedRatings"`
}

// ProcessJob asks the processing worker to rate one session, or to
// recompute every rating when Recalculate is set.
type ProcessJob struct {
	JobID       string
	SessionID   string
	Recalculate bool
}
