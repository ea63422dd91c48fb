package model

import (
	"errors"
	"time"
)

// Errors shared by every implementation of the remote session operations.
var (
	// ErrAlreadyProcessed is returned when processing is requested for a
	// session whose ratings were already applied. Recalculation is the
	// explicit path for re-rating stored sessions.
	ErrAlreadyProcessed = errors.New("session already processed")

	// ErrInvalidInput marks a request that is malformed rather than
	// structurally wrong.
	ErrInvalidInput = errors.New("invalid input")
)

// SessionInput creates a session header.
type SessionInput struct {
	Date        time.Time `json:"date"`
	BoatClass   string    `json:"boatClass"`
	Conditions  string    `json:"conditions,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
}

// PieceInput creates a piece under an existing session.
type PieceInput struct {
	SessionID      string `json:"sessionId"`
	SequenceOrder  int    `json:"sequenceOrder"`
	DistanceMeters *int   `json:"distanceMeters,omitempty"`
	Direction      string `json:"direction,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// BoatInput creates a boat under an existing piece. HandicapSeconds
// defaults to zero.
type BoatInput struct {
	SessionID         string   `json:"sessionId"`
	PieceID           string   `json:"pieceId"`
	Name              string   `json:"name"`
	FinishTimeSeconds *float64 `json:"finishTimeSeconds,omitempty"`
	HandicapSeconds   float64  `json:"handicapSeconds"`
}

// Input returns the header of s without its pieces.
func (s Session) Input() SessionInput {
	return SessionInput{
		Date:        s.Date,
		BoatClass:   s.BoatClass,
		Conditions:  s.Conditions,
		Location:    s.Location,
		Description: s.Description,
	}
}

// Input builds the creation request for p under sessionID.
func (p Piece) Input(sessionID string) PieceInput {
	return PieceInput{
		SessionID:      sessionID,
		SequenceOrder:  p.SequenceOrder,
		DistanceMeters: p.DistanceMeters,
		Direction:      p.Direction,
		Notes:          p.Notes,
	}
}

// Input builds the creation request for b under the given parents.
func (b Boat) Input(sessionID, pieceID string) BoatInput {
	return BoatInput{
		SessionID:         sessionID,
		PieceID:           pieceID,
		Name:              b.Name,
		FinishTimeSeconds: b.FinishTimeSeconds,
		HandicapSeconds:   b.HandicapSeconds,
	}
}
