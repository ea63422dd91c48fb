package validate

import (
	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/seats"
	"github.com/okian/oarbit/internal/domain/switches"
)

// DraftReport is the live feedback for an unsaved session.
type DraftReport struct {
	Valid       bool                  `json:"valid"`
	Errors      []Issue               `json:"errors"`
	Warnings    []Issue               `json:"warnings"`
	Transitions []switches.Transition `json:"transitions"`
	Boats       []BoatFill            `json:"boats"`
	Seats       seats.Config          `json:"seats"`
}

// BoatFill is the completeness of one boat in a draft.
type BoatFill struct {
	PieceOrder int    `json:"pieceOrder"`
	BoatName   string `json:"boatName"`
	Completeness
}

// Draft runs Session over draft and adds the switches between its pieces
// and the fill level of every boat.
func Draft(draft model.Session, roster Roster) DraftReport {
	report := Session(draft, roster)
	cfg := seats.ForClass(draft.BoatClass)

	var fills []BoatFill
	for _, p := range draft.OrderedPieces() {
		for _, b := range p.Boats {
			fills = append(fills, BoatFill{
				PieceOrder:   p.SequenceOrder,
				BoatName:     b.Name,
				Completeness: BoatCompleteness(b, cfg),
			})
		}
	}

	return DraftReport{
		Valid:       report.OK(),
		Errors:      report.Errors,
		Warnings:    report.Warnings,
		Transitions: switches.Detect(draft.Pieces),
		Boats:       fills,
		Seats:       cfg,
	}
}
