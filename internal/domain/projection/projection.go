// Package projection previews the ranking effect of an unsaved session.
package projection

import (
	"errors"
	"slices"
	"strings"

	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/rating"
	"github.com/okian/oarbit/internal/domain/types"
)

// ErrUnavailable is returned when the draft has no piece with two comparable
// boats. It is distinct from a projection with zero change.
var ErrUnavailable = errors.New("projection unavailable: no piece has two timed, crewed boats")

// Comparison is one athlete's current and projected standing.
// RankDelta is CurrentRank - ProjectedRank, positive when the athlete moves up.
type Comparison struct {
	AthleteID       string  `json:"athleteId"`
	CurrentRating   float64 `json:"currentRating"`
	CurrentRank     int     `json:"currentRank"`
	ProjectedRating float64 `json:"projectedRating"`
	ProjectedRank   int     `json:"projectedRank"`
	RatingDelta     float64 `json:"ratingDelta"`
	RankDelta       int     `json:"rankDelta"`
	Races           int     `json:"races"`
	Wins            int     `json:"wins"`
}

// Projection is the preview of a draft session.
type Projection struct {
	Available   bool         `json:"available"`
	Pairs       int          `json:"pairs"`
	Comparisons []Comparison `json:"comparisons"`
}

// Projector runs the rating engine against a copy of the current ratings.
type Projector struct {
	engine *rating.Engine
}

// New returns a Projector using engine. A nil engine uses the defaults.
func New(engine *rating.Engine) *Projector {
	if engine == nil {
		engine = rating.New()
	}
	return &Projector{engine: engine}
}

// Project computes the rating and rank change every athlete in draft would
// see if it were processed now. snapshot is not modified. Ranks are taken
// over the snapshot plus any athlete the draft rates for the first time.
func (p *Projector) Project(snapshot []types.Entry, draft model.Session) (Projection, error) {
	ratings := make(map[string]float64, len(snapshot))
	for _, e := range snapshot {
		ratings[e.AthleteID] = e.Rating
	}

	res := p.engine.Compute(draft.Pieces, ratings)
	if res.Comparisons == 0 {
		return Projection{Available: false}, ErrUnavailable
	}

	current := make([]types.Entry, 0, len(snapshot)+len(res.Updates))
	for _, e := range snapshot {
		current = append(current, types.Entry{AthleteID: e.AthleteID, Rating: e.Rating})
	}
	for _, u := range res.Updates {
		if _, ok := ratings[u.AthleteID]; !ok {
			current = append(current, types.Entry{AthleteID: u.AthleteID, Rating: u.OldRating})
		}
	}

	projected := slices.Clone(current)
	next := make(map[string]float64, len(res.Updates))
	for _, u := range res.Updates {
		next[u.AthleteID] = u.NewRating
	}
	for i := range projected {
		if r, ok := next[projected[i].AthleteID]; ok {
			projected[i].Rating = r
		}
	}

	types.RankEntries(current)
	types.RankEntries(projected)
	currentRank := types.RankIndex(current)
	projectedRank := types.RankIndex(projected)

	out := Projection{Available: true, Pairs: res.Comparisons, Comparisons: make([]Comparison, 0, len(res.Updates))}
	for _, u := range res.Updates {
		c := Comparison{
			AthleteID:       u.AthleteID,
			CurrentRating:   u.OldRating,
			CurrentRank:     currentRank[u.AthleteID],
			ProjectedRating: u.NewRating,
			ProjectedRank:   projectedRank[u.AthleteID],
			RatingDelta:     u.Delta,
			Races:           u.Races,
			Wins:            u.Wins,
		}
		c.RankDelta = c.CurrentRank - c.ProjectedRank
		out.Comparisons = append(out.Comparisons, c)
	}
	slices.SortFunc(out.Comparisons, func(a, b Comparison) int {
		if a.ProjectedRank != b.ProjectedRank {
			return a.ProjectedRank - b.ProjectedRank
		}
		return strings.Compare(a.AthleteID, b.AthleteID)
	})
	return out, nil
}
