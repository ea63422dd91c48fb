// Package rating turns piece results into seat-race rating updates.
//
// The engine is pure: it reads a ratings snapshot and returns updates. It is
// shared by the authoritative processing path and the preview projector so
// both produce the same numbers.
package rating

import (
	"math"
	"slices"

	"github.com/okian/oarbit/internal/domain/model"
)

// TieBreak is the policy for boats with identical effective times.
type TieBreak string

const (
	// TieBreakInputOrder ranks tied boats in the order they were entered.
	TieBreakInputOrder TieBreak = "input_order"
	// TieBreakShared gives tied boats the same, better, rank.
	TieBreakShared TieBreak = "shared"
)

// Defaults.
const (
	DefaultKFactor = 32.0
	DefaultRating  = 1500.0
	DefaultFloor   = 100.0

	// eloScale is the rating gap at which the stronger crew is expected to
	// win ten times out of eleven.
	eloScale = 400.0
)

// Engine computes rating updates.
type Engine struct {
	kFactor       float64
	defaultRating float64
	floor         float64
	tieBreak      TieBreak
}

// New creates an Engine with the given options applied over the defaults.
func New(opts ...Option) *Engine {
	e := &Engine{
		kFactor:       DefaultKFactor,
		defaultRating: DefaultRating,
		floor:         DefaultFloor,
		tieBreak:      TieBreakInputOrder,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// KFactor returns the configured K factor.
func (e *Engine) KFactor() float64 { return e.kFactor }

// DefaultRating returns the rating used for athletes without one.
func (e *Engine) DefaultRating() float64 { return e.defaultRating }

// Floor returns the minimum rating.
func (e *Engine) Floor() float64 { return e.floor }

// TieBreak returns the tie-break policy.
func (e *Engine) TieBreak() TieBreak { return e.tieBreak }

// RankedBoat is an eligible boat with its finishing rank in a piece.
type RankedBoat struct {
	Index      int      `json:"index"`
	BoatID     string   `json:"boatId,omitempty"`
	Name       string   `json:"name"`
	Effective  float64  `json:"effectiveSeconds"`
	Rank       int      `json:"rank"`
	AthleteIDs []string `json:"athleteIds"`
}

// Outcome is one athlete's result in one piece.
type Outcome struct {
	AthleteID  string `json:"athleteId"`
	PieceID    string `json:"pieceId,omitempty"`
	PieceOrder int    `json:"pieceOrder"`
	BoatName   string `json:"boatName"`
	FinishRank int    `json:"finishRank"`
	Won        bool   `json:"won"`
}

// Standing is the aggregate of one athlete's outcomes in a run.
type Standing struct {
	AthleteID       string  `json:"athleteId"`
	Races           int     `json:"races"`
	Wins            int     `json:"wins"`
	AvgFinishRank   float64 `json:"avgFinishRank"`
	// ExpectedAvgRank is the finish rank implied by pre-session ratings, not
	// an observed rank.
	ExpectedAvgRank float64 `json:"expectedAvgRank"`
	ExpectedScore   float64 `json:"expectedScore"`
	ActualScore     float64 `json:"actualScore"`
}

// Update is the rating change of one athlete.
type Update struct {
	AthleteID string  `json:"athleteId"`
	OldRating float64 `json:"oldRating"`
	NewRating float64 `json:"newRating"`
	Delta     float64 `json:"delta"`
	Races     int     `json:"races"`
	Wins      int     `json:"wins"`
}

// Result is the output of Compute.
type Result struct {
	Updates   []Update   `json:"updates"`
	Standings []Standing `json:"standings"`
	// Comparisons counts the boat pairs ranked against each other.
	Comparisons int `json:"comparisons"`
	// MaxBoats is the largest eligible field in any piece, at least 2 when
	// Comparisons is positive.
	MaxBoats int `json:"maxBoats"`
}

// Changes converts updates to the before/after form returned to callers.
func (r Result) Changes() []model.RatingChange {
	out := make([]model.RatingChange, 0, len(r.Updates))
	for _, u := range r.Updates {
		out = append(out, model.RatingChange{AthleteID: u.AthleteID, OldRating: u.OldRating, NewRating: u.NewRating})
	}
	return out
}

// Apply writes the new ratings into ratings.
func (r Result) Apply(ratings map[string]float64) {
	for _, u := range r.Updates {
		ratings[u.AthleteID] = u.NewRating
	}
}

// RankBoats ranks the eligible boats of piece by effective time. A boat is
// eligible when it has a finish time and at least one assignment. A piece
// with fewer than two eligible boats yields nil.
func (e *Engine) RankBoats(piece model.Piece) []RankedBoat {
	var boats []RankedBoat
	for i, b := range piece.Boats {
		eff, ok := b.EffectiveTime()
		if !ok || len(b.Assignments) == 0 {
			continue
		}
		ids := make([]string, 0, len(b.Assignments))
		for _, a := range b.Assignments {
			ids = append(ids, a.AthleteID)
		}
		boats = append(boats, RankedBoat{Index: i, BoatID: b.ID, Name: b.Name, Effective: eff, AthleteIDs: ids})
	}
	if len(boats) < 2 {
		return nil
	}

	slices.SortStableFunc(boats, func(a, b RankedBoat) int {
		switch {
		case a.Effective < b.Effective:
			return -1
		case a.Effective > b.Effective:
			return 1
		}
		return 0
	})

	for i := range boats {
		boats[i].Rank = i
		if e.tieBreak == TieBreakShared && i > 0 && boats[i].Effective == boats[i-1].Effective {
			boats[i].Rank = boats[i-1].Rank
		}
	}
	return boats
}

type contest struct {
	piece model.Piece
	boats []RankedBoat
}

func (e *Engine) contests(pieces []model.Piece) []contest {
	ordered := slices.Clone(pieces)
	slices.SortStableFunc(ordered, func(a, b model.Piece) int { return a.SequenceOrder - b.SequenceOrder })

	var out []contest
	for _, p := range ordered {
		if boats := e.RankBoats(p); boats != nil {
			out = append(out, contest{piece: p, boats: boats})
		}
	}
	return out
}

// Outcomes lists every athlete outcome across pieces in sequence order and
// the largest eligible field.
func (e *Engine) Outcomes(pieces []model.Piece) ([]Outcome, int) {
	var (
		out      []Outcome
		maxBoats int
	)
	for _, c := range e.contests(pieces) {
		maxBoats = max(maxBoats, len(c.boats))
		for _, b := range c.boats {
			for _, id := range b.AthleteIDs {
				out = append(out, Outcome{
					AthleteID:  id,
					PieceID:    c.piece.ID,
					PieceOrder: c.piece.SequenceOrder,
					BoatName:   b.Name,
					FinishRank: b.Rank,
					Won:        b.Rank == 0,
				})
			}
		}
	}
	return out, maxBoats
}

type tally struct {
	races       int
	wins        int
	rankSum     float64
	expectedSum float64
}

// Compute aggregates the outcomes of pieces and derives each athlete's
// update against ratings. Missing athletes start at the default rating.
// ratings is not modified.
func (e *Engine) Compute(pieces []model.Piece, ratings map[string]float64) Result {
	current := func(id string) float64 {
		if r, ok := ratings[id]; ok {
			return r
		}
		return e.defaultRating
	}

	var (
		res    Result
		order  []string
		totals = make(map[string]*tally)
	)

	for _, c := range e.contests(pieces) {
		n := len(c.boats)
		res.MaxBoats = max(res.MaxBoats, n)
		res.Comparisons += n * (n - 1) / 2

		strength := make([]float64, n)
		for i, b := range c.boats {
			var sum float64
			for _, id := range b.AthleteIDs {
				sum += current(id)
			}
			strength[i] = sum / float64(len(b.AthleteIDs))
		}

		for i, b := range c.boats {
			var expRank float64
			for j := range c.boats {
				if j != i {
					expRank += winProbability(strength[j], strength[i])
				}
			}
			for _, id := range b.AthleteIDs {
				t, ok := totals[id]
				if !ok {
					t = &tally{}
					totals[id] = t
					order = append(order, id)
				}
				t.races++
				if b.Rank == 0 {
					t.wins++
				}
				t.rankSum += float64(b.Rank)
				t.expectedSum += expRank
			}
		}
	}
	if res.Comparisons == 0 {
		return res
	}

	span := float64(max(res.MaxBoats, 2) - 1)
	res.Standings = make([]Standing, 0, len(order))
	res.Updates = make([]Update, 0, len(order))
	for _, id := range order {
		t := totals[id]
		races := float64(t.races)
		st := Standing{
			AthleteID:       id,
			Races:           t.races,
			Wins:            t.wins,
			AvgFinishRank:   t.rankSum / races,
			ExpectedAvgRank: t.expectedSum / races,
			ActualScore:     float64(t.wins) / races,
		}
		st.ExpectedScore = clamp01(1 - st.ExpectedAvgRank/span)
		res.Standings = append(res.Standings, st)

		old := current(id)
		next := math.Max(e.floor, old+e.kFactor*(st.ActualScore-st.ExpectedScore))
		res.Updates = append(res.Updates, Update{
			AthleteID: id,
			OldRating: old,
			NewRating: next,
			Delta:     next - old,
			Races:     t.races,
			Wins:      t.wins,
		})
	}
	return res
}

// winProbability is the logistic chance that a crew of strength a finishes
// ahead of a crew of strength b.
func winProbability(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/eloScale))
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
